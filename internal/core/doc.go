// Package core is the dispatcher's handle on one worker.
//
// A Core owns the dispatcher side of a worker's channel pair: the writer for
// tasks going in and the reader for results coming out. It tracks whether
// the worker is idle, which task is in flight, and the results collected so
// far in completion order.
//
// Only the dispatcher mutates a Core. Accessors take a read lock so a status
// endpoint may observe it concurrently.
package core
