package stress

import (
	"fmt"

	lockbroker "github.com/lockbroker/broker"
)

var ordinaryNames = []string{"A", "B"}
var sharedNames = []string{"S1", "S2"}

type holdKind uint8

const (
	holdOrdinary holdKind = iota
	holdShared
	holdRangeWrite
	holdRangeRead
)

type hold struct {
	kind   holdKind
	name   string
	write  bool
	v      int
	lo, hi int
	permit *lockbroker.Permit[string, int]
}

// Mismatch describes a single step where the model's predicted outcome
// disagreed with the real broker's.
type Mismatch struct {
	Step        int
	Description string
}

// Run replays a byte-stream-driven operation sequence of length steps
// against both a fresh [Model] and a fresh [lockbroker.Broker], returning
// every step where their try-acquire verdicts disagreed or where releasing
// a held permit failed.
//
// Every op is a try-acquire or a release of a previously successful hold,
// applied one at a time with no concurrency, so the single-threaded Model
// is expected to track the broker exactly.
func Run(seed []byte, steps int) []Mismatch {
	stream := NewByteStream(seed)
	model := NewModel()
	broker := lockbroker.New[string, int]()
	defer broker.Shutdown()

	var mismatches []Mismatch
	var holds []hold

	for step := 0; step < steps && (stream.HasMore() || len(holds) > 0); step++ {
		action := stream.NextInt(5)

		switch action {
		case 0:
			name := ordinaryNames[stream.NextInt(len(ordinaryNames))]
			write := stream.NextBool()
			runOrdinary(broker, model, name, write, step, &holds, &mismatches)
		case 1:
			name := sharedNames[stream.NextInt(len(sharedNames))]
			write := stream.NextBool()
			runShared(broker, model, name, write, step, &holds, &mismatches)
		case 2:
			v := stream.NextInt(10)
			runRangeWrite(broker, model, v, step, &holds, &mismatches)
		case 3:
			lo := stream.NextInt(10)
			hi := lo + stream.NextInt(10-lo)
			runRangeRead(broker, model, lo, hi, step, &holds, &mismatches)
		default:
			if len(holds) == 0 {
				continue
			}
			idx := stream.NextInt(len(holds))
			releaseHold(broker, model, holds[idx], step, &mismatches)
			holds = append(holds[:idx], holds[idx+1:]...)
		}
	}

	for _, h := range holds {
		_ = broker.Release(h.permit)
	}

	return mismatches
}

func runOrdinary(b *lockbroker.Broker[string, int], m *Model, name string, write bool, step int, holds *[]hold, mismatches *[]Mismatch) {
	tok := lockbroker.NewToken[string, int](name)

	p, err := tryAcquire(b, tok, write)
	got := err == nil
	want := m.TryOrdinary(name, write)

	if got != want {
		*mismatches = append(*mismatches, Mismatch{step, fmt.Sprintf("ordinary %s write=%v: model=%v broker=%v (err=%v)", name, write, want, got, err)})
		return
	}
	if got {
		*holds = append(*holds, hold{kind: holdOrdinary, name: name, write: write, permit: p})
	}
}

func runShared(b *lockbroker.Broker[string, int], m *Model, name string, write bool, step int, holds *[]hold, mismatches *[]Mismatch) {
	tok := lockbroker.NewSharedToken[string, int](name)

	p, err := tryAcquire(b, tok, write)
	got := err == nil
	want := m.TryShared(name, write)

	if got != want {
		*mismatches = append(*mismatches, Mismatch{step, fmt.Sprintf("shared %s write=%v: model=%v broker=%v (err=%v)", name, write, want, got, err)})
		return
	}
	if got {
		*holds = append(*holds, hold{kind: holdShared, name: name, write: write, permit: p})
	}
}

func runRangeWrite(b *lockbroker.Broker[string, int], m *Model, v int, step int, holds *[]hold, mismatches *[]Mismatch) {
	tok := lockbroker.NewRangeWriteToken[string, int]("RK", v)

	p, err := b.TryWriteLock(tok)
	got := err == nil
	want := m.TryRangeWrite(v)

	if got != want {
		*mismatches = append(*mismatches, Mismatch{step, fmt.Sprintf("range-write v=%d: model=%v broker=%v (err=%v)", v, want, got, err)})
		return
	}
	if got {
		*holds = append(*holds, hold{kind: holdRangeWrite, v: v, permit: p})
	}
}

func runRangeRead(b *lockbroker.Broker[string, int], m *Model, lo, hi int, step int, holds *[]hold, mismatches *[]Mismatch) {
	tok, err := lockbroker.NewRangeBetweenToken[string, int]("RK", lo, hi, lockbroker.Closed)
	if err != nil {
		return
	}

	p, err := b.TryReadLock(tok)
	got := err == nil
	want := m.TryRangeReadBetween(lo, hi)

	if got != want {
		*mismatches = append(*mismatches, Mismatch{step, fmt.Sprintf("range-read [%d,%d]: model=%v broker=%v (err=%v)", lo, hi, want, got, err)})
		return
	}
	if got {
		*holds = append(*holds, hold{kind: holdRangeRead, lo: lo, hi: hi, permit: p})
	}
}

func releaseHold(b *lockbroker.Broker[string, int], m *Model, h hold, step int, mismatches *[]Mismatch) {
	if err := b.Release(h.permit); err != nil {
		*mismatches = append(*mismatches, Mismatch{step, fmt.Sprintf("release failed: %v", err)})
	}
	switch h.kind {
	case holdOrdinary:
		m.ReleaseOrdinary(h.name, h.write)
	case holdShared:
		m.ReleaseShared(h.name, h.write)
	case holdRangeWrite:
		m.ReleaseRangeWrite(h.v)
	case holdRangeRead:
		m.ReleaseRangeReadBetween(h.lo, h.hi)
	}
}

// tryAcquire issues a single try-acquire and returns its permit (nil on
// failure) alongside the error, so callers get both the pass/fail verdict
// and the handle needed for a later release in one call.
func tryAcquire(b *lockbroker.Broker[string, int], tok lockbroker.Token[string, int], write bool) (*lockbroker.Permit[string, int], error) {
	if write {
		return b.TryWriteLock(tok)
	}
	return b.TryReadLock(tok)
}
