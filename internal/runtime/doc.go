// Package runtime wires the dispatcher, replay ring, bus publisher, and bus
// listener into a single-node relay instance with one Open/Close lifecycle.
package runtime
