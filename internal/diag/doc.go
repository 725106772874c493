// Package diag defines the user-facing diagnostic model of the lowering core.
//
// # Purpose
//
// Diagnostics describe problems in the user's program (duplicate symbols,
// disallowed implicit conversions, type mismatches) and recoverable events
// such as a stale module cache. They accumulate in a Bag so that one
// compilation attempt can report several independent findings.
//
// Internal invariant violations are not diagnostics. The verifier and the
// serializer return Go errors for those and the current unit is aborted.
//
// # Data model
//
//   - Severity – style, note, warning or error.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – short human oriented text.
//   - Primary span – what is wrong.
//   - Notes – secondary spans explaining why.
//
// # Emitting diagnostics
//
// Producers use a Reporter. ReportBuilder chains WithNote before Emit;
// BagReporter stores into a Bag, which supports sorting and deduplication.
// FormatShort renders a bag as one line per entry using the location tables
// restored from a module cache.
package diag
