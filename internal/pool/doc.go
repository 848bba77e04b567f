// Package pool creates and tears down the fixed set of workers.
//
// A Launcher starts one worker and hands back the dispatcher's ends of its
// channels. Two launchers are provided:
//
//   - ProcessLauncher re-executes the current binary in worker mode, one
//     operating-system process per worker. Task, result and notification
//     pipes are passed as file descriptors 3, 4 and 5.
//   - GoroutineLauncher runs each worker in a goroutine over os.Pipe pairs.
//
// # Basic Usage
//
//	p, err := pool.New(ctx, pool.Config{Workers: 3}, launcher)
//	if err != nil {
//	    return err // *ResourceError
//	}
//	defer p.Shutdown()
//
// # Shutdown
//
// Shutdown closes every inbound channel, which is the only stop signal a
// worker understands, then waits for all workers to exit.
package pool
