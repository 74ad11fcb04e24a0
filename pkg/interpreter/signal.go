package interpreter

import "strings"

// Signal is a bit set of asynchronous notifications.
type Signal uint32

const (
	// SignalCancel asks the request to stop.
	SignalCancel Signal = 1 << iota

	// SignalTimeout reports that the request ran out of time.
	SignalTimeout

	// SignalDetach reports that the request was detached from its parent.
	SignalDetach

	// SignalDup reports that a duplicate of the request arrived.
	SignalDup
)

// signalsStop are the signals that tear down the request.
const signalsStop = SignalCancel | SignalTimeout

var signalNames = []struct {
	sig  Signal
	name string
}{
	{SignalCancel, "cancel"},
	{SignalTimeout, "timeout"},
	{SignalDetach, "detach"},
	{SignalDup, "dup"},
}

func (s Signal) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for _, n := range signalNames {
		if s&n.sig != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Signal delivers sig to the topmost frame of req, unless the frame masks
// it. Cancel and timeout also mark the request so that the next Run tears
// down its stack. Signals for requests that have finished are ignored.
//
// Signal handlers run with the request lock held; they must not block and
// must not call Run or Signal for the same request.
func (i *Interpreter) Signal(req *Request, sig Signal) error {
	if req.busy.Load() {
		return ErrReentrantRun
	}
	req.mu.Lock()
	req.busy.Store(true)
	defer func() {
		req.busy.Store(false)
		req.mu.Unlock()
	}()

	if req.status == statusDone || req.depth == 0 {
		return nil
	}

	i.observer.SignalDelivered(sig)
	if sig&signalsStop != 0 {
		req.cancelled |= sig & signalsStop
	}

	i.deliverTop(req, sig)
	return nil
}

// deliverTop hands sig to the topmost frame's handler unless the frame
// masks it. The caller holds the request lock.
func (i *Interpreter) deliverTop(req *Request, sig Signal) {
	f := req.top()
	deliver := sig &^ f.sigmask
	if deliver == 0 || f.signal == nil {
		req.logger.Debug("signal not delivered",
			"signal", sig.String(),
			"instruction", f.instruction.DebugName(),
			"masked", f.sigmask.String())
		return
	}

	req.logger.Debug("delivering signal",
		"signal", deliver.String(),
		"instruction", f.instruction.DebugName(),
		"depth", f.depth)
	f.signal(req, f, deliver)
}
