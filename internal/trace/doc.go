// Package trace records what the lowering pipeline is doing.
//
// Events are grouped by scope: the whole pipeline run, one pass, one
// fixed-point iteration over a unit and, at debug level, individual rewrites.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "do_loops", 0)
//	defer span.End("")
//
// StreamTracer writes each event as soon as it arrives (text or NDJSON);
// RingTracer keeps the last N events in memory for post-mortem dumps.
package trace
