// Package dispatcher runs a batch of tasks across a fixed pool of workers.
//
// An Engine creates the pool, assigns tasks to idle workers in index order,
// collects each result once its worker has signalled completion, and closes
// the pool when every task has a result.
//
// # Basic Usage
//
//	cfg := dispatcher.DefaultConfig()
//	cfg.NumTasks, cfg.MaxBits = 10, 4
//	engine := dispatcher.New(cfg, launcher)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Report())
//
// An Engine runs once. Its run ID and metrics describe that single run, and
// a second call to Run returns ErrAlreadyRun.
//
// # Scheduling
//
// Every pass scans the workers in order. A worker with a pending
// notification has its result read; an idle worker gets the next task. A
// pass that read nothing blocks until the next notification instead of
// spinning. Each worker holds at most one task, so no more than Workers
// tasks are ever in flight.
package dispatcher
