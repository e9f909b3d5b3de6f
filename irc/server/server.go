package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/presbrey/ircserv/irc"
	"github.com/presbrey/ircserv/irc/config"
	"github.com/presbrey/ircserv/irc/transport"
)

// Transport is the non-blocking socket surface the event loop drives.
type Transport interface {
	Listen(port int) (transport.Handle, error)
	Accept(l transport.Handle) (transport.Handle, string, error)
	Read(h transport.Handle, buf []byte) (int, error)
	Write(h transport.Handle, p []byte) (int, error)
	Close(h transport.Handle) error
	Wait(set []transport.PollEntry, timeout time.Duration) (int, error)
}

// Server represents the IRC server. All fields except stopping, stats and
// the relay queue are owned by the goroutine running the event loop.
type Server struct {
	config    *config.Config
	transport Transport
	password  PasswordChecker
	log       *slog.Logger
	metrics   *Metrics
	now       func() time.Time
	startTime time.Time

	listener    transport.Handle
	listening   bool
	acceptPause time.Time
	pollset   []transport.PollEntry
	readBuf   []byte

	sessions map[string]*Session
	byHandle map[transport.Handle]*Session
	nicks    map[string]string
	channels map[string]*Channel

	hooks map[string]Hook

	stopping atomic.Bool
	stats    atomic.Pointer[Stats]

	relayMu sync.Mutex
	relays  []relayMessage
}

// Hook is a function that handles one protocol command. Returning an
// *irc.NumericError sends that error to the issuing session.
type Hook func(params *HookParams) error

// HookParams contains context information for hooks
type HookParams struct {
	Server  *Server
	Session *Session
	Message *irc.Message
}

// NewServer creates a new IRC server on top of tr.
func NewServer(cfg *config.Config, tr Transport, logger *slog.Logger) (*Server, error) {
	checker, err := NewPasswordChecker(cfg.Server.Password, cfg.Server.Hashed)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bufSize := cfg.Loop.ReadBufferSize
	if bufSize <= 0 {
		bufSize = 4096
	}

	srv := &Server{
		config:    cfg,
		transport: tr,
		password:  checker,
		log:       logger,
		metrics:   NewMetrics(),
		now:       time.Now,
		readBuf:   make([]byte, bufSize),
		sessions:  make(map[string]*Session),
		byHandle:  make(map[transport.Handle]*Session),
		nicks:     make(map[string]string),
		channels:  make(map[string]*Channel),
		hooks:     make(map[string]Hook),
	}
	srv.startTime = srv.now()

	// Register default hooks
	srv.registerDefaultHooks()
	srv.publishStats()

	return srv, nil
}

// Listen opens the listening endpoint on the configured port.
func (s *Server) Listen() error {
	l, err := s.transport.Listen(s.config.Server.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Server.Port, err)
	}
	s.listener = l
	s.listening = true
	s.pollset = append(s.pollset[:0], transport.PollEntry{Handle: l, Interest: transport.EventRead})

	s.log.Info("listening", "port", s.config.Server.Port, "server", s.config.Server.Name)
	return nil
}

// Run drives the event loop until Stop is called or the readiness wait
// fails. The stop flag is checked once per batch, so a batch in flight
// always completes.
func (s *Server) Run() error {
	if !s.listening {
		return errors.New("server is not listening")
	}

	s.log.Info("event loop started")
	for !s.stopping.Load() {
		if err := s.runOnce(); err != nil {
			s.log.Error("event loop stopped", "err", err)
			return err
		}
	}
	s.log.Info("event loop ended")
	return nil
}

// Stop asks the event loop to exit after the current batch. It is safe
// to call from any goroutine, including a signal handler goroutine.
func (s *Server) Stop() {
	s.stopping.Store(true)
}

// Shutdown closes every session and the listener. It must only be called
// after Run has returned.
func (s *Server) Shutdown() {
	for _, entry := range s.pollset {
		if entry.Handle == s.listener {
			continue
		}
		if sess := s.byHandle[entry.Handle]; sess != nil {
			s.flushOnce(sess)
		}
		s.transport.Close(entry.Handle)
	}
	if s.listening {
		s.transport.Close(s.listener)
		s.listening = false
	}

	s.log.Info("server shut down", "sessions", s.ClientCount(), "channels", s.ChannelCount())

	s.pollset = nil
	s.sessions = make(map[string]*Session)
	s.byHandle = make(map[transport.Handle]*Session)
	s.nicks = make(map[string]string)
	s.channels = make(map[string]*Channel)
	s.publishStats()
}

// runOnce performs one wait and processes the resulting readiness batch.
func (s *Server) runOnce() error {
	s.refreshInterest()

	_, err := s.transport.Wait(s.pollset, s.config.Loop.PollInterval)
	if errors.Is(err, transport.ErrInterrupted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("wait for readiness: %w", err)
	}

	s.processBatch()
	s.deliverRelays()
	s.publishStats()
	return nil
}

// refreshInterest arms write interest for every session with queued output.
func (s *Server) refreshInterest() {
	for i := range s.pollset {
		entry := &s.pollset[i]
		entry.Ready = 0
		if entry.Handle == s.listener {
			entry.Interest = transport.EventRead
			if s.acceptPaused() {
				entry.Interest = 0
			}
			continue
		}
		entry.Interest = transport.EventRead
		if sess := s.byHandle[entry.Handle]; sess != nil && sess.HasPendingSend() {
			entry.Interest |= transport.EventWrite
		}
	}
}

// processBatch walks the readiness set. The cursor only advances when
// the entry at i survived, so removals never skip a neighbour.
func (s *Server) processBatch() {
	for i := 0; i < len(s.pollset); {
		entry := s.pollset[i]
		if entry.Handle == s.listener {
			if entry.Ready&(transport.EventRead|transport.EventHangup) != 0 && !s.acceptPaused() {
				s.acceptAll()
			}
			i++
			continue
		}
		if s.serviceSession(i) {
			i++
		}
	}
}

// acceptBackoff is how long the listener stays out of the wait set after
// accept fails with a real error such as EMFILE.
const acceptBackoff = time.Second

func (s *Server) acceptPaused() bool {
	return s.now().Before(s.acceptPause)
}

// acceptAll drains the listener until it would block.
func (s *Server) acceptAll() {
	for {
		h, addr, err := s.transport.Accept(s.listener)
		if errors.Is(err, transport.ErrWouldBlock) {
			return
		}
		if err != nil {
			s.acceptPause = s.now().Add(acceptBackoff)
			s.log.Warn("accept failed, pausing accepts", "err", err, "backoff", acceptBackoff)
			return
		}

		sess := s.addSession(h, addr)
		s.pollset = append(s.pollset, transport.PollEntry{Handle: h, Interest: transport.EventRead})
		s.metrics.ConnectionsAccepted.Inc()
		s.log.Info("client connected", "addr", addr, "session", sess.ID, "total", len(s.sessions))
	}
}

// serviceSession handles read, close and write readiness for the entry at
// i, in that order. It returns false when the entry was removed.
func (s *Server) serviceSession(i int) bool {
	entry := s.pollset[i]
	sess := s.byHandle[entry.Handle]
	if sess == nil {
		s.transport.Close(entry.Handle)
		s.removePollEntry(i)
		return false
	}

	if entry.Ready&transport.EventHangup != 0 {
		s.disconnect(i, sess, "hangup")
		return false
	}

	if entry.Ready&transport.EventRead != 0 {
		n, err := s.transport.Read(sess.Handle, s.readBuf)
		switch {
		case errors.Is(err, io.EOF):
			s.disconnect(i, sess, "peer closed")
			return false
		case errors.Is(err, transport.ErrWouldBlock):
		case err != nil:
			s.log.Warn("read failed", "session", sess.ID, "err", err)
			s.disconnect(i, sess, "read error")
			return false
		default:
			s.metrics.BytesRead.Add(float64(n))
			sess.AppendReceived(s.readBuf[:n])
			sess.Touch(s.now())
			s.processLines(sess)
			if sess.Closing() {
				s.disconnect(i, sess, "closed")
				return false
			}
		}
	}

	if entry.Ready&transport.EventWrite != 0 && sess.HasPendingSend() {
		if err := s.flush(sess); err != nil {
			s.log.Warn("write failed", "session", sess.ID, "err", err)
			s.disconnect(i, sess, "write error")
			return false
		}
	}

	return true
}

// processLines dispatches every complete buffered line. Nothing after a
// line that closed the session is processed.
func (s *Server) processLines(sess *Session) {
	for !sess.Closing() && sess.HasCompleteLine() {
		msg := irc.ParseMessage(sess.PopLine())
		if msg == nil {
			continue
		}
		s.dispatch(sess, msg)
	}
}

// flush writes as much queued output as the transport accepts.
func (s *Server) flush(sess *Session) error {
	for sess.HasPendingSend() {
		n, err := s.transport.Write(sess.Handle, sess.Pending())
		if n > 0 {
			s.metrics.BytesWritten.Add(float64(n))
			sess.ClearSent(n)
		}
		if errors.Is(err, transport.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// flushOnce makes a single best-effort write before a handle is closed.
func (s *Server) flushOnce(sess *Session) {
	if !sess.HasPendingSend() {
		return
	}
	if n, err := s.transport.Write(sess.Handle, sess.Pending()); err == nil && n > 0 {
		s.metrics.BytesWritten.Add(float64(n))
		sess.ClearSent(n)
	}
}

// disconnect tears down the session at pollset index i.
func (s *Server) disconnect(i int, sess *Session, reason string) {
	quit := sess.QuitReason()
	if quit == "" {
		quit = "Connection closed"
	}

	s.removeSession(sess, quit)
	s.flushOnce(sess)
	if err := s.transport.Close(sess.Handle); err != nil {
		s.log.Debug("close failed", "session", sess.ID, "err", err)
	}
	s.removePollEntry(i)

	s.metrics.Disconnects.WithLabelValues(reason).Inc()
	s.log.Info("client disconnected", "addr", sess.Addr, "nick", sess.Nick(), "reason", reason, "total", len(s.sessions))
}

func (s *Server) removePollEntry(i int) {
	s.pollset = append(s.pollset[:i], s.pollset[i+1:]...)
}

// RegisterHook registers the handler for a command, replacing any
// previous one.
func (s *Server) RegisterHook(command string, hook Hook) {
	s.hooks[command] = hook
}

// registerDefaultHooks registers the default hooks
func (s *Server) registerDefaultHooks() {
	s.RegisterHook("PASS", handlePass)
	s.RegisterHook("NICK", handleNick)
	s.RegisterHook("USER", handleUser)
	s.RegisterHook("PING", handlePing)
	s.RegisterHook("PONG", handlePong)
	s.RegisterHook("QUIT", handleQuit)
	s.RegisterHook("JOIN", registeredOnly(handleJoin))
	s.RegisterHook("PART", registeredOnly(handlePart))
	s.RegisterHook("TOPIC", registeredOnly(handleTopic))
	s.RegisterHook("KICK", registeredOnly(handleKick))
	s.RegisterHook("INVITE", registeredOnly(handleInvite))
	s.RegisterHook("MODE", registeredOnly(handleMode))
	s.RegisterHook("PRIVMSG", registeredOnly(handlePrivmsg))
	s.RegisterHook("NOTICE", handleNotice)
}

// registeredOnly silently drops the command for unregistered sessions.
func registeredOnly(hook Hook) Hook {
	return func(params *HookParams) error {
		if !params.Session.Registered() {
			return nil
		}
		return hook(params)
	}
}

// dispatch routes one parsed message to its hook.
func (s *Server) dispatch(sess *Session, msg *irc.Message) {
	hook, ok := s.hooks[msg.Command]
	if !ok {
		s.log.Debug("unknown command", "command", msg.Command, "session", sess.ID)
		return
	}

	s.metrics.Commands.WithLabelValues(msg.Command).Inc()
	s.log.Debug("dispatch", "command", msg.Command, "params", logParams(msg), "nick", sess.Nick())

	err := hook(&HookParams{Server: s, Session: sess, Message: msg})
	if err == nil {
		return
	}

	var numeric *irc.NumericError
	if errors.As(err, &numeric) {
		s.sendError(sess, numeric)
		return
	}
	s.log.Warn("command failed", "command", msg.Command, "session", sess.ID, "err", err)
}

// logParams returns the parameters of msg safe for logging. Passwords
// never reach the log.
func logParams(msg *irc.Message) []string {
	if msg.Command == "PASS" {
		return []string{"[redacted]"}
	}
	return msg.Params
}

// sendNumeric queues ":<server> <code> <nick> <text>" on sess.
func (s *Server) sendNumeric(sess *Session, code, text string) {
	sess.SendLine(irc.Numeric(s.config.Server.Name, code, sess.Nick(), text))
}

func (s *Server) sendError(sess *Session, err *irc.NumericError) {
	s.sendNumeric(sess, err.Code, err.Text())
}

// reportError sends err when it is a numeric error and logs it otherwise.
// Batch commands use it to keep going after a per-target failure.
func (s *Server) reportError(sess *Session, err error) {
	var numeric *irc.NumericError
	if errors.As(err, &numeric) {
		s.sendError(sess, numeric)
		return
	}
	s.log.Warn("command failed", "session", sess.ID, "err", err)
}

// Metrics returns the Prometheus collectors of this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
