package server

import (
	"errors"
	"strings"
)

// ErrEmptyRelay is returned by Relay for blank messages.
var ErrEmptyRelay = errors.New("relay message is empty")

type relayMessage struct {
	channel string
	text    string
}

// Relay queues a server PRIVMSG to every member of channel. It is safe to
// call from any goroutine; the event loop delivers queued messages after
// its next batch, and drops those whose channel no longer exists.
func (s *Server) Relay(channel, text string) error {
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return ErrEmptyRelay
	}
	// One relay is one protocol line.
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)

	s.relayMu.Lock()
	s.relays = append(s.relays, relayMessage{channel: channel, text: text})
	s.relayMu.Unlock()
	return nil
}

// deliverRelays runs on the event loop.
func (s *Server) deliverRelays() {
	s.relayMu.Lock()
	queued := s.relays
	s.relays = nil
	s.relayMu.Unlock()

	for _, r := range queued {
		ch := s.Channel(r.channel)
		if ch == nil {
			s.log.Warn("relay dropped, no such channel", "channel", r.channel)
			continue
		}
		s.broadcast(ch, ":"+s.config.Server.Name+" PRIVMSG "+ch.Name+" :"+r.text, "")
		s.metrics.Relays.Inc()
		s.log.Info("relayed message", "channel", ch.Name, "members", ch.MemberCount())
	}
}
