package sandbox

// Gate bounds the number of operations that may be in-flight against the
// sandbox at the same time. Admission is fail-fast: there is no queueing and
// no fairness, a caller that cannot be admitted immediately is rejected and
// must retry on its own schedule.
type Gate struct {
	ch chan struct{}
}

// NewGate returns a gate admitting at most limit concurrent operations.
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{ch: make(chan struct{}, limit)}
}

// Acquire takes a slot from the gate if one is available. If the gate is at
// capacity an ErrCodeTooBusy error is returned immediately without blocking.
func (g *Gate) Acquire() error {
	select {
	case g.ch <- struct{}{}:
		return nil
	default:
		return newError(ErrCodeTooBusy, nil, "")
	}
}

// Release returns a previously acquired slot to the gate. It must be called
// exactly once per successful Acquire, on every exit path. Releasing a gate
// with no acquired slots is a no-op.
func (g *Gate) Release() {
	select {
	case <-g.ch:
	default:
	}
}

// Active returns the number of currently admitted operations.
func (g *Gate) Active() int {
	return len(g.ch)
}

// Limit returns the maximum number of concurrently admitted operations.
func (g *Gate) Limit() int {
	return cap(g.ch)
}
