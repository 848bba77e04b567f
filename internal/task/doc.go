// Package task defines the unit of work handed to a worker and its wire form.
//
// A Task carries a sequential id and a bit width. On the wire it travels as
// the text "<id>_<bits>"; results travel as a plain decimal integer. Framing
// (the trailing NUL byte) is the channel package's concern, not this one.
//
// # Generation
//
// Generator draws bit widths uniformly from [0, maxBits] using a seeded
// source, so a run can be repeated exactly by reusing its seed:
//
//	gen := task.NewGenerator(maxBits, seed)
//	tasks := gen.Generate(numTasks)
//
// # Malformed Messages
//
// ParseTask and ParseResult return a *ProtocolError for input that does not
// match the expected format. Callers log it and carry on with Sentinel.
package task
