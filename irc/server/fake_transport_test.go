package server

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircserv/irc/config"
	"github.com/presbrey/ircserv/irc/transport"
)

const testPassword = "secret"

type fakeConn struct {
	in         []byte
	out        []byte
	closed     bool
	peerClosed bool
	hangup     bool
	writeLimit int // bytes accepted per wait, 0 for unlimited
	budget     int
	writeErr   error
}

// fakeTransport is an in-memory Transport. Every connection is always
// writable; readability follows the bytes queued with send.
type fakeTransport struct {
	next     transport.Handle
	pending  []transport.Handle
	conns    map[transport.Handle]*fakeConn
	listenOK  bool
	acceptErr error
	waitErr   error
	waits     int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{next: 3, conns: make(map[transport.Handle]*fakeConn)}
}

func (f *fakeTransport) Listen(port int) (transport.Handle, error) {
	if f.listenOK {
		return 0, transport.ErrUnsupported
	}
	f.listenOK = true
	f.next++
	return f.next, nil
}

func (f *fakeTransport) Accept(l transport.Handle) (transport.Handle, string, error) {
	if f.acceptErr != nil {
		return 0, "", f.acceptErr
	}
	if len(f.pending) == 0 {
		return 0, "", transport.ErrWouldBlock
	}
	h := f.pending[0]
	f.pending = f.pending[1:]
	return h, "127.0.0.1", nil
}

func (f *fakeTransport) Read(h transport.Handle, buf []byte) (int, error) {
	c := f.conns[h]
	if len(c.in) > 0 {
		n := copy(buf, c.in)
		c.in = c.in[n:]
		return n, nil
	}
	if c.peerClosed {
		return 0, io.EOF
	}
	return 0, transport.ErrWouldBlock
}

func (f *fakeTransport) Write(h transport.Handle, p []byte) (int, error) {
	c := f.conns[h]
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if c.writeLimit > 0 {
		if c.budget == 0 {
			return 0, transport.ErrWouldBlock
		}
		n = min(n, c.budget)
		c.budget -= n
	}
	c.out = append(c.out, p[:n]...)
	return n, nil
}

func (f *fakeTransport) Close(h transport.Handle) error {
	if c := f.conns[h]; c != nil {
		c.closed = true
	}
	return nil
}

func (f *fakeTransport) Wait(set []transport.PollEntry, timeout time.Duration) (int, error) {
	f.waits++
	if f.waitErr != nil {
		return 0, f.waitErr
	}

	ready := 0
	for i := range set {
		entry := &set[i]
		c, ok := f.conns[entry.Handle]
		if !ok {
			if entry.Interest&transport.EventRead != 0 && len(f.pending) > 0 {
				entry.Ready = transport.EventRead
			}
		} else {
			c.budget = c.writeLimit
			if c.hangup {
				entry.Ready |= transport.EventHangup
			}
			if len(c.in) > 0 || c.peerClosed {
				entry.Ready |= transport.EventRead
			}
			if entry.Interest&transport.EventWrite != 0 {
				entry.Ready |= transport.EventWrite
			}
		}
		if entry.Ready != 0 {
			ready++
		}
	}
	return ready, nil
}

// connect queues a new inbound connection and returns its handle.
func (f *fakeTransport) connect() transport.Handle {
	f.next++
	h := f.next
	f.conns[h] = &fakeConn{}
	f.pending = append(f.pending, h)
	return h
}

func (f *fakeTransport) send(h transport.Handle, lines ...string) {
	c := f.conns[h]
	for _, line := range lines {
		c.in = append(c.in, line+"\r\n"...)
	}
}

// drain returns and forgets everything written to h so far.
func (f *fakeTransport) drain(h transport.Handle) []string {
	c := f.conns[h]
	out := string(c.out)
	c.out = nil
	return splitLines(out)
}

func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\r\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Name = "irc.test"
	cfg.Server.Network = "TestNet"
	cfg.Server.Port = 6667
	cfg.Server.Password = testPassword
	cfg.Loop.PollInterval = time.Millisecond
	return cfg
}

func newTestServer(t *testing.T) (*Server, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	srv, err := NewServer(testConfig(), ft, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	return srv, ft
}

// settle runs loop iterations until no input or output is outstanding.
func settle(t *testing.T, srv *Server, ft *fakeTransport) {
	t.Helper()
	for range 100 {
		require.NoError(t, srv.runOnce())

		busy := len(ft.pending) > 0
		for _, sess := range srv.sessions {
			if sess.HasPendingSend() {
				busy = true
			}
			if c := ft.conns[sess.Handle]; c != nil && (len(c.in) > 0 || c.peerClosed || c.hangup) {
				busy = true
			}
		}
		if !busy {
			return
		}
	}
	t.Fatal("event loop did not settle")
}

// parse decodes reply lines for structured assertions.
func parse(t *testing.T, lines []string) []*girc.Event {
	t.Helper()
	events := make([]*girc.Event, 0, len(lines))
	for _, line := range lines {
		e := girc.ParseEvent(line)
		require.NotNil(t, e, "unparseable line %q", line)
		events = append(events, e)
	}
	return events
}

func commands(events []*girc.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Command)
	}
	return out
}

// newSession adds a session without going through the loop.
func newSession(srv *Server) *Session {
	ft := srv.transport.(*fakeTransport)
	ft.next++
	ft.conns[ft.next] = &fakeConn{}
	return srv.addSession(ft.next, "127.0.0.1")
}

// run dispatches raw lines on sess the way processLines does.
func run(srv *Server, sess *Session, lines ...string) {
	for _, line := range lines {
		sess.AppendReceived([]byte(line + "\r\n"))
	}
	srv.processLines(sess)
}

// output returns and clears the lines queued on sess.
func output(sess *Session) []string {
	lines := splitLines(string(sess.Pending()))
	sess.ClearSent(len(sess.Pending()))
	return lines
}

// register completes the handshake for a fresh session named nick.
func register(t *testing.T, srv *Server, nick string) *Session {
	t.Helper()
	sess := newSession(srv)
	run(srv, sess, "PASS "+testPassword, "NICK "+nick, "USER "+nick+" 0 * :"+nick+" Test")
	require.True(t, sess.Registered(), "%s should be registered", nick)
	output(sess)
	return sess
}
