// Package id provides a 128-bit, lexicographically sortable identifier used
// for relay instance and subscriber connection IDs.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence],
// so byte-wise comparison preserves chronological order and IDs generated
// within the same millisecond remain strictly increasing by sequence.
//
// # Monotonicity
//
// The Generator guarantees per-process monotonicity: a regressing system
// clock pins to the last seen millisecond, and a sequence overflow within a
// single millisecond waits for the next one.
//
// Usage
//
//	g := id.NewGenerator()
//	connID := g.Next()
//	s := connID.String() // hex string
package id
