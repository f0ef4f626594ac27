// Package trace records structured events about the resolution pipeline.
//
// A Tracer receives span begin/end and point events. The driver opens one
// pass span per resolution phase and, at detail level, one module span per
// module body pass. Every tracer built by New carries a run identifier that
// is written into the stream header and attached to driver-scope events so
// that traces from concurrent invocations can be told apart.
//
// Tracing is off by default and costs a nil check per span when disabled.
package trace
