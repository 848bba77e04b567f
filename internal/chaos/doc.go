// Package chaos provides fault injection for byte-stream channel endpoints.
//
// A Monkey wraps readers and writers so that they misbehave the way real
// pipes and sockets can: reads return only a few bytes at a time, writes
// complete only partially, and calls fail with EINTR as if a signal had
// arrived. The channel protocol must absorb all of this transparently.
package chaos
