//go:build linux

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Sys is the operating system transport backed by raw non-blocking
// sockets and poll(2).
type Sys struct {
	Backlog int
}

// New returns a Sys transport with the default backlog.
func New() *Sys {
	return &Sys{Backlog: DefaultBacklog}
}

// Listen creates a non-blocking IPv4 TCP listener bound to all
// interfaces with SO_REUSEADDR enabled. Port 0 picks an ephemeral port.
func (s *Sys) Listen(port int) (Handle, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("setsockopt", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind port %d: %w", port, os.NewSyscallError("bind", err))
	}

	backlog := s.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("listen", err)
	}

	return Handle(fd), nil
}

// LocalPort returns the port a listener is bound to.
func (s *Sys) LocalPort(h Handle) (int, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return 0, os.NewSyscallError("getsockname", err)
	}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return addr.Port, nil
	case *unix.SockaddrInet6:
		return addr.Port, nil
	}
	return 0, fmt.Errorf("unexpected socket address %T", sa)
}

// Accept takes one pending connection off the listener. The new handle
// is already non-blocking. Connections aborted before they were taken are
// skipped.
func (s *Sys) Accept(l Handle) (Handle, string, error) {
	for {
		fd, sa, err := unix.Accept4(int(l), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			return Handle(fd), peerAddress(sa), nil
		}
		if retry, err := acceptError(err); !retry {
			return -1, "", err
		}
	}
}

// acceptError classifies an accept4 failure. retry means the next pending
// connection should be tried right away.
func acceptError(err error) (retry bool, _ error) {
	switch {
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
		return true, nil
	case errors.Is(err, unix.EAGAIN):
		return false, ErrWouldBlock
	default:
		return false, os.NewSyscallError("accept4", err)
	}
}

// Read reads available bytes into buf. A closed peer yields io.EOF.
func (s *Sys) Read(h Handle, buf []byte) (int, error) {
	n, err := unix.Read(int(h), buf)
	switch {
	case err == nil && n == 0 && len(buf) > 0:
		return 0, io.EOF
	case err == nil:
		return n, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, ErrWouldBlock
	default:
		return 0, os.NewSyscallError("read", err)
	}
}

// Write sends as much of p as the socket accepts. MSG_NOSIGNAL turns a
// broken pipe into an EPIPE error instead of a process-wide SIGPIPE.
func (s *Sys) Write(h Handle, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.SendmsgN(int(h), p, nil, nil, unix.MSG_NOSIGNAL)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, ErrWouldBlock
	default:
		return 0, os.NewSyscallError("sendmsg", err)
	}
}

// Close releases the handle.
func (s *Sys) Close(h Handle) error {
	if err := unix.Close(int(h)); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// Wait blocks until at least one entry is ready or the timeout expires.
// A negative timeout waits forever. Ready bits are written back into set.
func (s *Sys) Wait(set []PollEntry, timeout time.Duration) (int, error) {
	fds := make([]unix.PollFd, len(set))
	for i, entry := range set {
		fds[i] = unix.PollFd{Fd: int32(entry.Handle), Events: toPoll(entry.Interest)}
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	n, err := unix.Poll(fds, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, ErrInterrupted
		}
		return 0, os.NewSyscallError("poll", err)
	}

	for i := range set {
		set[i].Ready = fromPoll(fds[i].Revents)
	}
	return n, nil
}

func toPoll(e Events) int16 {
	var events int16
	if e&EventRead != 0 {
		events |= unix.POLLIN
	}
	if e&EventWrite != 0 {
		events |= unix.POLLOUT
	}
	return events
}

func fromPoll(revents int16) Events {
	var e Events
	if revents&unix.POLLIN != 0 {
		e |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		e |= EventWrite
	}
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		e |= EventHangup
	}
	return e
}

func peerAddress(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(addr.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(addr.Addr[:]).String()
	}
	return "unknown"
}
