package stress

// Model is a single-threaded reference implementation of just enough of
// the broker's blocking rules to predict whether a try-acquire would
// succeed. It exists so a generated operation sequence can be replayed
// against both the model and a real broker and their try-acquire verdicts
// compared.
//
// The model only needs to agree with the broker when operations are
// applied one at a time with no concurrent interleaving - which is
// exactly how [Run] drives it.
type Model struct {
	ordinary map[string]*ordinaryState
	shared   map[string]int
	writePts map[int]int // value -> hold count
	ranges   []rangeHold  // currently held range-read intervals
}

type ordinaryState struct {
	readers int
	writer  bool
}

type rangeHold struct {
	lo, hi int
}

// NewModel constructs an empty Model.
func NewModel() *Model {
	return &Model{
		ordinary: make(map[string]*ordinaryState),
		shared:   make(map[string]int),
		writePts: make(map[int]int),
	}
}

func (m *Model) ordinaryOf(name string) *ordinaryState {
	s, ok := m.ordinary[name]
	if !ok {
		s = &ordinaryState{}
		m.ordinary[name] = s
	}
	return s
}

// TryOrdinary predicts whether a try-acquire of mode on an ordinary token
// would succeed, and applies the hold if so.
func (m *Model) TryOrdinary(name string, write bool) bool {
	s := m.ordinaryOf(name)
	if write {
		if s.readers > 0 || s.writer {
			return false
		}
		s.writer = true
		return true
	}
	if s.writer {
		return false
	}
	s.readers++
	return true
}

// ReleaseOrdinary reverses a prior successful TryOrdinary.
func (m *Model) ReleaseOrdinary(name string, write bool) {
	s := m.ordinaryOf(name)
	if write {
		s.writer = false
		return
	}
	if s.readers > 0 {
		s.readers--
	}
}

// TryShared predicts whether a try-acquire of mode on a shared token would
// succeed, and applies the hold if so.
func (m *Model) TryShared(name string, write bool) bool {
	cur := m.shared[name]
	delta := -1
	if write {
		delta = 1
	}
	if cur != 0 && (cur > 0) != (delta > 0) {
		return false
	}
	m.shared[name] = cur + delta
	return true
}

// ReleaseShared reverses a prior successful TryShared.
func (m *Model) ReleaseShared(name string, write bool) {
	delta := -1
	if write {
		delta = 1
	}
	m.shared[name] -= delta
}

// TryRangeWrite predicts whether a point write at v would succeed, and
// applies the hold if so.
func (m *Model) TryRangeWrite(v int) bool {
	if m.writePts[v] > 0 {
		return false // same write token already held by another writer
	}
	for _, r := range m.ranges {
		if v >= r.lo && v <= r.hi {
			return false
		}
	}
	m.writePts[v]++
	return true
}

// ReleaseRangeWrite reverses a prior successful TryRangeWrite.
func (m *Model) ReleaseRangeWrite(v int) {
	if m.writePts[v] > 0 {
		m.writePts[v]--
	}
}

// TryRangeReadBetween predicts whether a closed-interval range read over
// [lo,hi] would succeed, and applies the hold if so.
func (m *Model) TryRangeReadBetween(lo, hi int) bool {
	for v, count := range m.writePts {
		if count > 0 && v >= lo && v <= hi {
			return false
		}
	}
	m.ranges = append(m.ranges, rangeHold{lo: lo, hi: hi})
	return true
}

// ReleaseRangeReadBetween reverses one prior successful
// TryRangeReadBetween(lo, hi).
func (m *Model) ReleaseRangeReadBetween(lo, hi int) {
	for i, r := range m.ranges {
		if r.lo == lo && r.hi == hi {
			m.ranges = append(m.ranges[:i], m.ranges[i+1:]...)
			return
		}
	}
}
