// Package scheduler runs interpreter requests on a worker pool.
//
// Workers pick requests off a bounded run queue and advance them until they
// yield or finish. A yielded request holds no worker: the module that
// suspended it calls Request.Resume when its work completes, which puts
// the request back on the queue. Cancelling the submit context or hitting
// the configured request timeout signals the request and queues it so its
// stack is torn down.
//
//	s, err := scheduler.New(interp, policyManager, &cfg.Scheduler,
//	    scheduler.WithLogger(logger),
//	    scheduler.WithMetrics(collector),
//	)
//	out, err := s.Submit(ctx, "accounting", scheduler.NewRequest(lists))
//	outcome := <-out
package scheduler
