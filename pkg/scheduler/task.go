package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/interpreter"
)

// task is a submitted request and its scheduling state. mu serializes Run
// and Signal for the request; a wakeup that arrives while the request is
// running waits on it.
type task struct {
	req     *interpreter.Request
	section string
	span    trace.Span
	start   time.Time
	out     chan Outcome

	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool

	mu       sync.Mutex
	yields   int
	finished bool
}
