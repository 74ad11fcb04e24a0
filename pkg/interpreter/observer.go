package interpreter

import "math/rand/v2"

// Observer is notified of interpreter events. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	// FramePushed is called for every frame pushed.
	FramePushed(kind Type)

	// LoadBalanceSelected is called when a load-balance group selects its
	// starting child. policy is "keyed" or "random".
	LoadBalanceSelected(group, policy string)

	// RedundantFailover is called when a redundant walk moves past a child.
	RedundantFailover(group string)

	// SignalDelivered is called for every signal sent to a live request.
	SignalDelivered(sig Signal)
}

type noopObserver struct{}

func (noopObserver) FramePushed(Type)                   {}
func (noopObserver) LoadBalanceSelected(string, string) {}
func (noopObserver) RedundantFailover(string)           {}
func (noopObserver) SignalDelivered(Signal)             {}

// RandomSource produces uniformly distributed 32 bit values. It must be
// safe for concurrent use.
type RandomSource interface {
	Uint32() uint32
}

type globalRandom struct{}

func (globalRandom) Uint32() uint32 {
	return rand.Uint32()
}
