// Package state holds the entity partitions that event appliers mutate.
//
// Each partition owns a fixed set of column families in the keyed store
// and exposes a read interface (XState) and a write interface
// (MutableXState). Partitions never touch each other's column families;
// effects spanning entities are made by the applier calling each partition
// in turn, inside the transaction carried by the context.
package state
