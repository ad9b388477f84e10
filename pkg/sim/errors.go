package sim

import "errors"

// Simulator errors.
var (
	// ErrUnknownFault is returned by ParseFaults for an unrecognised name.
	ErrUnknownFault = errors.New("unknown fault")

	// ErrBadCommand is recorded when the host sends a malformed SEND line.
	ErrBadCommand = errors.New("malformed command")

	// ErrSizeRejected is recorded when the announced size is out of range.
	ErrSizeRejected = errors.New("image size rejected")
)
