package server

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/presbrey/ircserv/irc/transport"
)

var lineTerminator = []byte("\r\n")

// Session is the server-side state of one live connection, registered or not.
type Session struct {
	ID           string
	Handle       transport.Handle
	Addr         string
	Identity     *Identity
	ConnectedAt  time.Time
	LastActivity time.Time

	recv []byte
	send []byte

	passAccepted bool
	registered   bool
	closing      bool
	quitReason   string
}

// NewSession creates a session for an accepted handle. The identity starts
// out empty apart from the peer address used as hostname.
func NewSession(h transport.Handle, addr string, now time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		Handle:       h,
		Addr:         addr,
		Identity:     NewIdentity(addr),
		ConnectedAt:  now,
		LastActivity: now,
	}
}

// AppendReceived adds inbound bytes to the receive buffer.
func (s *Session) AppendReceived(p []byte) {
	s.recv = append(s.recv, p...)
}

// HasCompleteLine reports whether a CRLF terminated line is buffered.
func (s *Session) HasCompleteLine() bool {
	return bytes.Contains(s.recv, lineTerminator)
}

// PopLine removes the first line from the receive buffer and returns it
// without its terminator. It returns "" when no complete line is buffered.
func (s *Session) PopLine() string {
	i := bytes.Index(s.recv, lineTerminator)
	if i < 0 {
		return ""
	}
	line := string(s.recv[:i])
	s.recv = s.recv[i+len(lineTerminator):]
	if len(s.recv) == 0 {
		s.recv = nil
	}
	return line
}

// QueueSend appends raw bytes to the outbound buffer.
func (s *Session) QueueSend(data string) {
	s.send = append(s.send, data...)
}

// SendLine queues one protocol line, adding CRLF when missing.
func (s *Session) SendLine(line string) {
	s.QueueSend(line)
	if !strings.HasSuffix(line, "\r\n") {
		s.send = append(s.send, lineTerminator...)
	}
}

// HasPendingSend reports whether outbound bytes are waiting.
func (s *Session) HasPendingSend() bool {
	return len(s.send) > 0
}

// Pending returns the unsent outbound bytes. The slice is only valid until
// the next call that modifies the buffer.
func (s *Session) Pending() []byte {
	return s.send
}

// ClearSent drops the first n bytes of the outbound buffer after a
// (possibly partial) write.
func (s *Session) ClearSent(n int) {
	if n >= len(s.send) {
		s.send = nil
		return
	}
	s.send = s.send[n:]
}

// Touch records client activity.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Close marks the session for teardown by the event loop.
func (s *Session) Close(reason string) {
	if s.closing {
		return
	}
	s.closing = true
	s.quitReason = reason
}

// Closing reports whether the session was marked for teardown.
func (s *Session) Closing() bool { return s.closing }

// QuitReason is the reason given to Close.
func (s *Session) QuitReason() string { return s.quitReason }

// PassAccepted reports whether PASS succeeded.
func (s *Session) PassAccepted() bool { return s.passAccepted }

// Registered reports whether the PASS/NICK/USER handshake completed.
func (s *Session) Registered() bool { return s.registered }

// Nick returns the current nickname, possibly empty.
func (s *Session) Nick() string { return s.Identity.Nickname }
