// Package transport exposes the small non-blocking socket surface the
// server event loop is built on: a listening endpoint, accept, read,
// write, close and a poll(2) style readiness wait.
package transport

import (
	"errors"
	"strings"
)

// Handle identifies an open endpoint. On Unix it is the file descriptor.
type Handle int

// Events is a bit set of readiness conditions.
type Events uint8

const (
	// EventRead means data (or a pending connection) can be read.
	EventRead Events = 1 << iota
	// EventWrite means the endpoint accepts more outbound bytes.
	EventWrite
	// EventHangup covers peer hangup, socket errors and invalid handles.
	EventHangup
)

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	if e&EventRead != 0 {
		parts = append(parts, "read")
	}
	if e&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if e&EventHangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}

// PollEntry is one slot of a readiness set. Interest is filled in by the
// caller; Ready is written by Wait.
type PollEntry struct {
	Handle   Handle
	Interest Events
	Ready    Events
}

var (
	// ErrWouldBlock reports that the operation cannot make progress now.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrInterrupted reports that a wait was interrupted by a signal.
	ErrInterrupted = errors.New("transport: wait interrupted")

	// ErrUnsupported is returned on platforms without a native implementation.
	ErrUnsupported = errors.New("transport: not supported on this platform")
)

// DefaultBacklog is the listen queue length requested from the kernel.
const DefaultBacklog = 128
