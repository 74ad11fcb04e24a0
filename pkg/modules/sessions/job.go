package sessions

import (
	"context"
	"log/slog"

	"mercator-hq/callisto/pkg/interpreter"
)

// job is the state of one accounting update. Each step runs a statement
// on its own goroutine and resumes the request when it finishes.
type job struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session Session
	logger  *slog.Logger

	// Written by the statement goroutine before done is closed.
	done  chan struct{}
	count int64
	err   error
}

// launch runs fn in the background and yields the request.
func (j *job) launch(req *interpreter.Request, fn func(ctx context.Context) error) interpreter.Action {
	j.done = make(chan struct{})
	j.err = nil
	go func() {
		j.err = fn(j.ctx)
		close(j.done)
		req.Resume()
	}()
	return interpreter.ActionYield
}

// pending reports whether the running statement has not finished yet.
func (j *job) pending() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

func (j *job) fail(result *interpreter.Result, step string) interpreter.Action {
	j.logger.Error("session update failed", "step", step, "key", j.session.Key, "error", j.err)
	j.cancel()
	*result = interpreter.NewResult(interpreter.RcodeFail)
	return interpreter.ActionCalculateResult
}

func (m *Module) insertStart(_ context.Context, _ *interpreter.Result, req *interpreter.Request, uctx any) interpreter.Action {
	j := uctx.(*job)
	return j.launch(req, func(ctx context.Context) error {
		n, err := m.store.insert(ctx, j.session)
		j.count = n
		return err
	})
}

func (m *Module) insertDone(_ context.Context, result *interpreter.Result, req *interpreter.Request, uctx any) interpreter.Action {
	j := uctx.(*job)
	if j.pending() {
		return interpreter.ActionYield
	}
	if j.err != nil {
		return j.fail(result, "insert")
	}

	if m.cfg.TrimCount >= 0 && j.count > m.cfg.TrimCount {
		excess := j.count - m.cfg.TrimCount
		if err := interpreter.SetFunctionRepeat(req, interpreter.WithResult(m.trimDone)); err != nil {
			j.err = err
			return j.fail(result, "trim")
		}
		return j.launch(req, func(ctx context.Context) error {
			_, err := m.store.trim(ctx, j.session.Key, excess)
			return err
		})
	}
	return m.startExpire(result, req, j)
}

func (m *Module) trimDone(_ context.Context, result *interpreter.Result, req *interpreter.Request, uctx any) interpreter.Action {
	j := uctx.(*job)
	if j.pending() {
		return interpreter.ActionYield
	}
	if j.err != nil {
		return j.fail(result, "trim")
	}
	return m.startExpire(result, req, j)
}

func (m *Module) startExpire(result *interpreter.Result, req *interpreter.Request, j *job) interpreter.Action {
	if err := interpreter.SetFunctionRepeat(req, interpreter.WithResult(m.expireDone)); err != nil {
		j.err = err
		return j.fail(result, "expire")
	}
	return j.launch(req, func(ctx context.Context) error {
		return m.store.expire(ctx, j.session.Key, j.session.ExpiresAt)
	})
}

func (m *Module) expireDone(_ context.Context, result *interpreter.Result, _ *interpreter.Request, uctx any) interpreter.Action {
	j := uctx.(*job)
	if j.pending() {
		return interpreter.ActionYield
	}
	if j.err != nil {
		return j.fail(result, "expire")
	}
	j.cancel()
	j.logger.Debug("session updated", "key", j.session.Key, "status", j.session.Status, "count", j.count)
	*result = interpreter.NewResult(interpreter.RcodeOK)
	return interpreter.ActionCalculateResult
}

// cancelJob aborts the statement in flight. The statement goroutine still
// resumes the request once the driver returns.
func cancelJob(_ *interpreter.Request, sig interpreter.Signal, uctx any) {
	j := uctx.(*job)
	j.logger.Debug("cancelling session update", "signal", sig.String())
	j.cancel()
}
