package server

import (
	"github.com/presbrey/ircserv/irc"
)

// handlePass handles the PASS command
func handlePass(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "PASS")
	}
	if sess.Registered() {
		return irc.NewError(irc.ERR_ALREADYREGISTRED)
	}

	if !s.password.Check(msg.Params[0]) {
		s.sendError(sess, irc.NewError(irc.ERR_PASSWDMISMATCH))
		sess.Close("Password incorrect")
		s.log.Info("password mismatch", "addr", sess.Addr, "session", sess.ID)
		return nil
	}

	sess.passAccepted = true
	s.tryRegister(sess)
	return nil
}

// handleNick handles the NICK command
func handleNick(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	newNick := msg.Param(0)
	if newNick == "" {
		return irc.NewError(irc.ERR_NONICKNAMEGIVEN)
	}

	if !irc.IsValidNickname(newNick) {
		return irc.NewError(irc.ERR_ERRONEUSNICKNAME, newNick)
	}
	if s.nickInUse(newNick, sess) {
		return irc.NewError(irc.ERR_NICKNAMEINUSE, newNick)
	}
	if newNick == sess.Nick() {
		return nil
	}

	if sess.Registered() {
		notice := ":" + sess.Identity.Prefix() + " NICK :" + newNick
		sess.SendLine(notice)
		for _, peer := range s.channelPeers(sess) {
			peer.SendLine(notice)
		}
		s.log.Info("nick changed", "old", sess.Nick(), "new", newNick)
	}

	s.setNick(sess, newNick)
	s.tryRegister(sess)
	return nil
}

// handleUser handles the USER command
func handleUser(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if sess.Registered() {
		return irc.NewError(irc.ERR_ALREADYREGISTRED)
	}
	if len(msg.Params) < 4 || msg.Params[0] == "" {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "USER")
	}

	sess.Identity.Username = msg.Params[0]
	sess.Identity.Realname = msg.Params[3]

	s.tryRegister(sess)
	return nil
}

// tryRegister completes the handshake once password, nickname and
// username are all present. The welcome is sent exactly once.
func (s *Server) tryRegister(sess *Session) {
	if sess.registered || !sess.passAccepted {
		return
	}
	if sess.Identity.Nickname == "" || sess.Identity.Username == "" {
		return
	}

	sess.registered = true
	s.sendNumeric(sess, irc.RPL_WELCOME,
		":Welcome to the "+s.config.Server.Network+" Network "+sess.Identity.Prefix())
	s.log.Info("client registered", "nick", sess.Nick(), "user", sess.Identity.Username, "addr", sess.Addr)
}

// handlePing handles the PING command
func handlePing(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "PING")
	}

	name := s.config.Server.Name
	sess.SendLine(":" + name + " PONG " + name + " :" + msg.Params[0])
	return nil
}

// handlePong handles the PONG command
func handlePong(params *HookParams) error {
	params.Session.Touch(params.Server.now())
	return nil
}

// handleQuit handles the QUIT command. Teardown and the QUIT notice to
// channel peers happen when the event loop disconnects the session.
func handleQuit(params *HookParams) error {
	reason := params.Message.Param(0)
	if reason == "" {
		reason = "Client Quit"
	}
	params.Session.Close(reason)
	return nil
}
