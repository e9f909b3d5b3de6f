package server

import (
	"strconv"
	"strings"

	"github.com/presbrey/ircserv/irc"
)

// handleJoin handles the JOIN command. Each comma separated target is
// joined independently; a failing target does not stop the rest.
func handleJoin(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "JOIN")
	}

	targets := strings.Split(msg.Params[0], ",")
	keys := strings.Split(msg.Param(1), ",")

	for i, name := range targets {
		if name == "" {
			continue
		}
		if !irc.IsChannelName(name) {
			name = "#" + name
		}
		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		if err := s.joinChannel(sess, name, key); err != nil {
			s.reportError(sess, err)
		}
	}
	return nil
}

// joinChannel validates and performs one join, in invite, key, limit order.
func (s *Server) joinChannel(sess *Session, name, key string) error {
	ch := s.Channel(name)
	created := false
	if ch == nil {
		ch = s.createChannel(name)
		created = true
	}

	if ch.IsMember(sess.ID) {
		return nil
	}

	if ch.Modes.InviteOnly && !ch.IsInvited(sess.Nick()) {
		return irc.NewError(irc.ERR_INVITEONLYCHAN, name)
	}
	if ch.HasMode('k') && ch.Modes.Key != key {
		return irc.NewError(irc.ERR_BADCHANNELKEY, name)
	}
	if ch.Full() {
		return irc.NewError(irc.ERR_CHANNELISFULL, name)
	}

	ch.AddMember(sess.ID, sess.Nick())
	if created {
		ch.AddOperator(sess.ID)
	}
	sess.Identity.joinChannel(name)

	// Everyone else through the broadcast, the joiner directly, so the
	// joiner sees its JOIN exactly once.
	joinMsg := ":" + sess.Identity.Prefix() + " JOIN " + name
	s.broadcast(ch, joinMsg, sess.ID)
	sess.SendLine(joinMsg)

	s.sendTopic(sess, ch)
	s.sendNumeric(sess, irc.RPL_NAMREPLY, "= "+name+" :"+s.namesList(ch))
	s.sendNumeric(sess, irc.RPL_ENDOFNAMES, name+" :End of /NAMES list")
	return nil
}

func (s *Server) sendTopic(sess *Session, ch *Channel) {
	if ch.Topic == "" {
		s.sendNumeric(sess, irc.RPL_NOTOPIC, ch.Name+" :No topic is set")
		return
	}
	s.sendNumeric(sess, irc.RPL_TOPIC, ch.Name+" :"+ch.Topic)
}

// handlePart handles the PART command
func handlePart(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "PART")
	}

	reason := msg.Param(1)
	if reason == "" {
		reason = "Leaving"
	}

	for _, name := range strings.Split(msg.Params[0], ",") {
		if name == "" {
			continue
		}

		ch := s.Channel(name)
		if ch == nil {
			s.reportError(sess, irc.NewError(irc.ERR_NOSUCHCHANNEL, name))
			continue
		}
		if !ch.IsMember(sess.ID) {
			s.reportError(sess, irc.NewError(irc.ERR_NOTONCHANNEL, name))
			continue
		}

		s.broadcast(ch, ":"+sess.Identity.Prefix()+" PART "+name+" :"+reason, "")
		s.removeMembership(ch, sess)
	}
	return nil
}

// handleTopic handles the TOPIC command
func handleTopic(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "TOPIC")
	}

	ch := s.Channel(msg.Params[0])
	if ch == nil {
		return irc.NewError(irc.ERR_NOSUCHCHANNEL, msg.Params[0])
	}

	if len(msg.Params) == 1 {
		s.sendTopic(sess, ch)
		return nil
	}

	if ch.Modes.TopicSettableByOpsOnly && !ch.IsOperator(sess.ID) {
		return irc.NewError(irc.ERR_CHANOPRIVSNEEDED, ch.Name)
	}

	topic := msg.Params[1]
	ch.SetTopic(topic, sess.Nick(), s.now())
	s.broadcast(ch, ":"+sess.Identity.Prefix()+" TOPIC "+ch.Name+" :"+topic, "")
	return nil
}

// handleKick handles the KICK command
func handleKick(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 2 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "KICK")
	}

	name, targetNick := msg.Params[0], msg.Params[1]
	comment := msg.Param(2)
	if comment == "" {
		comment = "Kicked"
	}

	ch := s.Channel(name)
	if ch == nil {
		return irc.NewError(irc.ERR_NOSUCHCHANNEL, name)
	}
	if !ch.IsOperator(sess.ID) {
		return irc.NewError(irc.ERR_CHANOPRIVSNEEDED, name)
	}

	target := s.memberByNick(ch, targetNick)
	if target == nil {
		return irc.NewError(irc.ERR_USERNOTINCHANNEL, targetNick, name)
	}

	s.broadcast(ch, ":"+sess.Identity.Prefix()+" KICK "+name+" "+targetNick+" :"+comment, "")
	s.removeMembership(ch, target)
	return nil
}

// handleInvite handles the INVITE command
func handleInvite(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	if len(msg.Params) < 2 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "INVITE")
	}

	targetNick, name := msg.Params[0], msg.Params[1]

	ch := s.Channel(name)
	if ch != nil {
		if !ch.IsMember(sess.ID) {
			return irc.NewError(irc.ERR_NOTONCHANNEL, name)
		}
		if ch.Modes.InviteOnly && !ch.IsOperator(sess.ID) {
			return irc.NewError(irc.ERR_CHANOPRIVSNEEDED, name)
		}
		if s.memberByNick(ch, targetNick) != nil {
			return irc.NewError(irc.ERR_USERONCHANNEL, targetNick, name)
		}
	}

	target := s.SessionByNick(targetNick)
	if target == nil {
		return irc.NewError(irc.ERR_NOSUCHNICK, targetNick)
	}

	if ch != nil {
		ch.AddInvite(targetNick)
	}

	target.SendLine(":" + sess.Identity.Prefix() + " INVITE " + targetNick + " " + name)
	s.sendNumeric(sess, irc.RPL_INVITING, targetNick+" "+name)
	return nil
}

// handleMode handles the MODE command for both users and channels
func handleMode(params *HookParams) error {
	msg := params.Message

	if len(msg.Params) < 1 {
		return irc.NewError(irc.ERR_NEEDMOREPARAMS, "MODE")
	}

	if irc.IsChannelName(msg.Params[0]) {
		return handleChannelMode(params)
	}
	return handleUserMode(params)
}

// handleUserMode handles MODE for the issuing user. Only +i/-i can be
// changed and only actual changes are confirmed.
func handleUserMode(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	target := msg.Params[0]
	if target != sess.Nick() {
		return irc.NewError(irc.ERR_USERSDONTMATCH)
	}

	modes := &sess.Identity.Modes
	if len(msg.Params) == 1 {
		s.sendNumeric(sess, irc.RPL_UMODEIS, modes.ModeString())
		return nil
	}

	var applied strings.Builder
	sign, lastSign := '+', rune(0)
	unknown := false

	for _, mode := range msg.Params[1] {
		switch mode {
		case '+', '-':
			sign = mode
			continue
		}

		known, changed := modes.Set(mode, sign == '+')
		if !known {
			unknown = true
			continue
		}
		if changed {
			if sign != lastSign {
				applied.WriteRune(sign)
				lastSign = sign
			}
			applied.WriteRune(mode)
		}
	}

	if applied.Len() > 0 {
		sess.SendLine(":" + sess.Identity.Prefix() + " MODE " + target + " :" + applied.String())
	}
	if unknown {
		return irc.NewError(irc.ERR_UMODEUNKNOWNFLAG)
	}
	return nil
}

// handleChannelMode handles MODE on a channel. The mode string is scanned
// left to right; a flag whose parameter is missing is skipped on its own.
func handleChannelMode(params *HookParams) error {
	s, sess, msg := params.Server, params.Session, params.Message

	name := msg.Params[0]
	ch := s.Channel(name)
	if ch == nil {
		return irc.NewError(irc.ERR_NOSUCHCHANNEL, name)
	}

	if len(msg.Params) == 1 {
		s.sendNumeric(sess, irc.RPL_CHANNELMODEIS, name+" "+ch.ModeString())
		return nil
	}

	if !ch.IsOperator(sess.ID) {
		return irc.NewError(irc.ERR_CHANOPRIVSNEEDED, name)
	}

	prefix := ":" + sess.Identity.Prefix() + " MODE " + name + " "
	paramIndex := 2
	nextParam := func() (string, bool) {
		if paramIndex >= len(msg.Params) {
			return "", false
		}
		param := msg.Params[paramIndex]
		paramIndex++
		return param, true
	}

	modeSet := true
	for _, mode := range msg.Params[1] {
		sign := "-"
		if modeSet {
			sign = "+"
		}

		switch mode {
		case '+':
			modeSet = true
		case '-':
			modeSet = false

		case 'o':
			nick, ok := nextParam()
			if !ok {
				continue
			}
			target := s.memberByNick(ch, nick)
			if target == nil {
				s.reportError(sess, irc.NewError(irc.ERR_USERNOTINCHANNEL, nick, name))
				continue
			}
			if modeSet {
				ch.AddOperator(target.ID)
			} else {
				ch.RemoveOperator(target.ID)
			}
			s.broadcast(ch, prefix+sign+"o "+nick, "")

		case 'k':
			key, ok := nextParam()
			if !ok {
				continue
			}
			if modeSet {
				if key == "" || strings.ContainsAny(key, " \t\r\n\v\f") {
					s.reportError(sess, irc.NewError(irc.ERR_INVALIDKEY, name))
					continue
				}
				ch.SetKey(key)
				s.broadcast(ch, prefix+"+k "+key, "")
				continue
			}
			if !ch.HasMode('k') {
				continue
			}
			if key != ch.Modes.Key {
				s.reportError(sess, irc.NewError(irc.ERR_KEYSET, name))
				continue
			}
			ch.SetKey("")
			s.broadcast(ch, prefix+"-k", "")

		case 'l':
			if !modeSet {
				ch.SetLimit(0)
				s.broadcast(ch, prefix+"-l", "")
				continue
			}
			param, ok := nextParam()
			if !ok {
				continue
			}
			limit, err := strconv.Atoi(param)
			if err != nil || limit < 1 {
				continue
			}
			ch.SetLimit(limit)
			s.broadcast(ch, prefix+"+l "+strconv.Itoa(limit), "")

		case 'i', 't':
			ch.SetFlag(mode, modeSet)
			s.broadcast(ch, prefix+sign+string(mode), "")

		default:
			s.reportError(sess, irc.NewError(irc.ERR_UNKNOWNMODE, string(mode)))
		}
	}
	return nil
}
