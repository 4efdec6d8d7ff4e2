package main

import (
	"encoding/json"
	"fmt"
	"time"

	lockbroker "github.com/lockbroker/broker"
	"github.com/lockbroker/broker/internal/fs"
)

// snapshotRecord is the on-disk shape of a diagnostics snapshot written by
// the "stats" command.
type snapshotRecord struct {
	Timestamp          string `json:"timestamp"`
	OutstandingPermits int64  `json:"outstanding_permits"`
}

// writeSnapshot atomically writes the broker's current stats to path,
// guarded by an exclusive file lock at path+".lock" so that two brokerctl
// processes pointed at the same snapshot path never interleave writes.
func writeSnapshot(fsys fs.FS, path string, stats lockbroker.Stats, now time.Time) error {
	locker := fs.NewLocker(fsys)

	lock, err := locker.LockWithTimeout(path+".lock", 2*time.Second)
	if err != nil {
		return fmt.Errorf("locking snapshot: %w", err)
	}
	defer lock.Close()

	record := snapshotRecord{
		Timestamp:          now.UTC().Format(time.RFC3339),
		OutstandingPermits: stats.OutstandingPermits,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := fsys.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

// readSnapshot loads and decodes a snapshot previously written by
// writeSnapshot. No brokerctl command calls it.
func readSnapshot(fsys fs.FS, path string) (snapshotRecord, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return snapshotRecord{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var record snapshotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return snapshotRecord{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	return record, nil
}
