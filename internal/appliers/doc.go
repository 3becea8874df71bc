// Package appliers turns events into state changes.
//
// Every event intent has one applier per record version. Appliers are
// registered once at startup by RegisterStateAppliers and looked up by
// (intent, version) when an event is applied. A released applier is never
// changed: new behavior ships as a new version, and the old one stays
// registered so that logs written with it still replay to the same state.
//
// Appliers read and write state only through the partitions they are built
// with, take time only from the stream clock, and never log.
package appliers
