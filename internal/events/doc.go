// Package events carries task progress from the generation pipeline to its
// observers.
//
// Producers publish ProgressEvents to a Sink. The Broadcaster is the
// in-process sink behind the SSE endpoint: every subscriber gets its own
// buffered channel, publishing never blocks, and a full buffer drops its
// oldest event. MultiSink fans one event out to several sinks, for example the
// Broadcaster and the NATS publisher.
package events
