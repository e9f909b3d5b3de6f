package server

import (
	"github.com/presbrey/ircserv/irc"
)

// handlePrivmsg handles the PRIVMSG command
func handlePrivmsg(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 2 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "PRIVMSG")
	}
	return s.deliver(sess, "PRIVMSG", msg.Params[0], msg.Params[1])
}

// handleNotice handles the NOTICE command. Failures are never reported.
func handleNotice(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if !sess.Registered() || len(msg.Params) < 2 {
		return nil
	}
	if err := s.deliver(sess, "NOTICE", msg.Params[0], msg.Params[1]); err != nil {
		s.log.Debug("notice dropped", "target", msg.Params[0], "err", err)
	}
	return nil
}

// deliver routes text to a channel, excluding the sender, or to a single
// registered nickname.
func (s *Server) deliver(sess *Session, command, target, text string) error {
	line := ":" + sess.Identity.Prefix() + " " + command + " " + target + " :" + text

	if irc.IsChannelName(target) {
		ch := s.Channel(target)
		if ch == nil {
			return irc.NewError(irc.ERR_NOSUCHCHANNEL, target)
		}
		s.broadcast(ch, line, sess.ID)
		return nil
	}

	recipient := s.SessionByNick(target)
	if recipient == nil {
		return irc.NewError(irc.ERR_NOSUCHNICK, target)
	}
	recipient.SendLine(line)
	return nil
}
