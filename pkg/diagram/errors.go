package diagram

import "errors"

var (
	// ErrNotFound is returned when a node id is not part of the graph.
	ErrNotFound = errors.New("node not found")

	// ErrUnknownSlot is returned for a palette override naming no slot.
	ErrUnknownSlot = errors.New("unknown palette slot")
)
