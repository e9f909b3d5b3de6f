package server

import (
	"strings"

	"github.com/presbrey/ircserv/irc/transport"
)

// addSession registers a freshly accepted connection.
func (s *Server) addSession(h transport.Handle, addr string) *Session {
	sess := NewSession(h, addr, s.now())
	s.sessions[sess.ID] = sess
	s.byHandle[h] = sess
	return sess
}

// removeSession drops sess from every index. Peers sharing a channel get
// one QUIT notice each, then the identity leaves all its channels and
// channels left empty are destroyed.
func (s *Server) removeSession(sess *Session, reason string) {
	if sess.Registered() {
		notice := ":" + sess.Identity.Prefix() + " QUIT :" + reason
		for _, peer := range s.channelPeers(sess) {
			peer.SendLine(notice)
		}
	}

	for _, name := range sess.Identity.Channels() {
		if ch := s.channels[name]; ch != nil {
			s.removeMembership(ch, sess)
		}
	}

	if owner, ok := s.nicks[sess.Nick()]; ok && owner == sess.ID {
		delete(s.nicks, sess.Nick())
	}
	delete(s.byHandle, sess.Handle)
	delete(s.sessions, sess.ID)
}

// SessionByNick returns the registered session holding nick, or nil.
func (s *Server) SessionByNick(nick string) *Session {
	id, ok := s.nicks[nick]
	if !ok {
		return nil
	}
	sess := s.sessions[id]
	if sess == nil || !sess.Registered() {
		return nil
	}
	return sess
}

// nickInUse reports whether a session other than self holds nick,
// registered or still in the handshake.
func (s *Server) nickInUse(nick string, self *Session) bool {
	id, ok := s.nicks[nick]
	return ok && id != self.ID
}

// setNick moves sess to a new nickname in the nick index.
func (s *Server) setNick(sess *Session, nick string) {
	if old := sess.Nick(); old != "" && s.nicks[old] == sess.ID {
		delete(s.nicks, old)
	}
	sess.Identity.Nickname = nick
	s.nicks[nick] = sess.ID
}

// Channel returns a channel by name, or nil.
func (s *Server) Channel(name string) *Channel {
	return s.channels[name]
}

func (s *Server) createChannel(name string) *Channel {
	ch := NewChannel(name, s.now())
	s.channels[name] = ch
	s.log.Debug("channel created", "channel", name)
	return ch
}

// removeMembership takes sess out of ch and destroys ch once it is empty.
func (s *Server) removeMembership(ch *Channel, sess *Session) {
	ch.RemoveMember(sess.ID)
	sess.Identity.leaveChannel(ch.Name)
	if ch.MemberCount() == 0 {
		delete(s.channels, ch.Name)
		s.log.Debug("channel destroyed", "channel", ch.Name)
	}
}

// broadcast queues line on every member of ch except the session with ID
// except ("" excludes nobody).
func (s *Server) broadcast(ch *Channel, line string, except string) {
	for _, id := range ch.Members() {
		if id == except {
			continue
		}
		if member := s.sessions[id]; member != nil {
			member.SendLine(line)
		}
	}
}

// channelPeers returns every other session sharing at least one channel
// with sess, each exactly once, in channel then join order.
func (s *Server) channelPeers(sess *Session) []*Session {
	seen := map[string]bool{sess.ID: true}
	var peers []*Session
	for _, name := range sess.Identity.Channels() {
		ch := s.channels[name]
		if ch == nil {
			continue
		}
		for _, id := range ch.Members() {
			if seen[id] {
				continue
			}
			seen[id] = true
			if peer := s.sessions[id]; peer != nil {
				peers = append(peers, peer)
			}
		}
	}
	return peers
}

// memberByNick resolves nick to a session that is a member of ch.
func (s *Server) memberByNick(ch *Channel, nick string) *Session {
	sess := s.SessionByNick(nick)
	if sess == nil || !ch.IsMember(sess.ID) {
		return nil
	}
	return sess
}

// namesList renders the member list with "@" before operators.
func (s *Server) namesList(ch *Channel) string {
	names := make([]string, 0, ch.MemberCount())
	for _, id := range ch.Members() {
		member := s.sessions[id]
		if member == nil {
			continue
		}
		if ch.IsOperator(id) {
			names = append(names, "@"+member.Nick())
		} else {
			names = append(names, member.Nick())
		}
	}
	return strings.Join(names, " ")
}

// ClientCount returns the number of connected sessions
func (s *Server) ClientCount() int {
	return len(s.sessions)
}

// ChannelCount returns the number of active channels
func (s *Server) ChannelCount() int {
	return len(s.channels)
}
