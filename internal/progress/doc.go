// Package progress reports indexing progress to observers.
//
// Sinks receive Events through Publish. The orchestrator never talks to a
// sink directly: it wraps it in a Reporter, which stamps run metadata onto
// each event, recovers panics and drops errors, so an observer can never
// fail an index run.
//
// Implementations:
//   - Nop discards events
//   - LogSink writes events to a zap logger
//   - NATSSink publishes JSON events on <prefix>.<projectID>
//   - Multi fans out to several sinks
//   - Recorder keeps events in memory for tests
package progress
