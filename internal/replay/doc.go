// Package replay rebuilds state by applying committed events in log order.
//
// # Ordering and Atomicity
//
// The Driver is single-writer. Events are applied strictly in position
// order, one SQLite transaction per event. The applier's mutations and the
// new last-applied position commit together, so a crash leaves the store at
// an event boundary and Resume continues from the persisted position.
//
// Records that are not events (commands, rejections) and checkpoint events
// do not change state; their position is still recorded so the log is never
// re-read from them.
//
// # Time
//
// Appliers never read the wall clock. Before each event the driver sets the
// stream clock to the event's record timestamp; a pinned clock overrides it.
//
// # Errors
//
// Every failure is fatal and reported as a *ReplayError. Nothing is retried
// and nothing is skipped: a replay that cannot apply an event stops there
// with the store unchanged by that event.
//
// # Consensus Boundary
//
// FSM adapts the Driver to hashicorp/raft, so a raft node applies committed
// log entries through the same path as an offline replay.
package replay
