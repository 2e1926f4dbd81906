package orchestrator

import "sync/atomic"

// PendingStart is set while a new session is being created, from the moment
// the user asks for it until session.start is emitted or the attempt fails.
type PendingStart struct {
	flag atomic.Bool
}

// TryAcquire sets the flag and reports whether it was previously clear.
func (p *PendingStart) TryAcquire() bool {
	return p.flag.CompareAndSwap(false, true)
}

// Release clears the flag.
func (p *PendingStart) Release() {
	p.flag.Store(false)
}

// Active reports whether a start is in progress.
func (p *PendingStart) Active() bool {
	return p.flag.Load()
}
