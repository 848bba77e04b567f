// Package worker implements the loop run by each member of the pool.
//
// A Worker owns two channel endpoints: an inbound reader carrying tasks from
// the dispatcher and an outbound writer carrying results back. It handles
// one task at a time:
//
//	receive "<id>_<bits>" -> sleep ComputeDelay -> extract bits -> send result -> notify
//
// The notification is raised only after the result has been written.
//
// # Basic Usage
//
//	w := worker.New(worker.Config{
//	    ID:           0,
//	    ComputeDelay: time.Second,
//	}, inbound, outbound, board)
//	err := w.Run()
//
// # Shutdown
//
// There is no stop message. When the dispatcher closes its end of the
// inbound channel, Receive reports channel.ErrClosed, the worker closes both
// of its endpoints and Run returns nil.
package worker
