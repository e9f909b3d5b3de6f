package irc

import (
	"fmt"
	"strings"
)

// Numeric reply codes used by the server.
const (
	RPL_WELCOME       = "001"
	RPL_UMODEIS       = "221"
	RPL_CHANNELMODEIS = "324"
	RPL_NOTOPIC       = "331"
	RPL_TOPIC         = "332"
	RPL_INVITING      = "341"
	RPL_NAMREPLY      = "353"
	RPL_ENDOFNAMES    = "366"

	ERR_NOSUCHNICK       = "401"
	ERR_NOSUCHCHANNEL    = "403"
	ERR_NONICKNAMEGIVEN  = "431"
	ERR_ERRONEUSNICKNAME = "432"
	ERR_NICKNAMEINUSE    = "433"
	ERR_USERNOTINCHANNEL = "441"
	ERR_NOTONCHANNEL     = "442"
	ERR_USERONCHANNEL    = "443"
	ERR_NEEDMOREPARAMS   = "461"
	ERR_ALREADYREGISTRED = "462"
	ERR_PASSWDMISMATCH   = "464"
	ERR_KEYSET           = "467"
	ERR_CHANNELISFULL    = "471"
	ERR_UNKNOWNMODE      = "472"
	ERR_INVITEONLYCHAN   = "473"
	ERR_BADCHANNELKEY    = "475"
	ERR_CHANOPRIVSNEEDED = "482"
	ERR_UMODEUNKNOWNFLAG = "501"
	ERR_USERSDONTMATCH   = "502"
	ERR_INVALIDKEY       = "525"
)

// errorTexts maps an error code to the human readable trailing text.
var errorTexts = map[string]string{
	ERR_NOSUCHNICK:       "No such nick/channel",
	ERR_NOSUCHCHANNEL:    "No such channel",
	ERR_NONICKNAMEGIVEN:  "No nickname given",
	ERR_ERRONEUSNICKNAME: "Erroneous nickname",
	ERR_NICKNAMEINUSE:    "Nickname is already in use",
	ERR_USERNOTINCHANNEL: "They aren't on that channel",
	ERR_NOTONCHANNEL:     "You're not on that channel",
	ERR_USERONCHANNEL:    "is already on channel",
	ERR_NEEDMOREPARAMS:   "Not enough parameters",
	ERR_ALREADYREGISTRED: "Unauthorized command (already registered)",
	ERR_PASSWDMISMATCH:   "Password incorrect",
	ERR_KEYSET:           "Channel key already set",
	ERR_CHANNELISFULL:    "Cannot join channel (+l)",
	ERR_UNKNOWNMODE:      "is unknown mode char to me",
	ERR_INVITEONLYCHAN:   "Cannot join channel (+i)",
	ERR_BADCHANNELKEY:    "Cannot join channel (+k)",
	ERR_CHANOPRIVSNEEDED: "You're not channel operator",
	ERR_UMODEUNKNOWNFLAG: "Unknown MODE flag",
	ERR_USERSDONTMATCH:   "Cannot change mode for other users",
	ERR_INVALIDKEY:       "Key is not well-formed",
}

// ErrorText returns the text for an error code.
func ErrorText(code string) string {
	if text, ok := errorTexts[code]; ok {
		return text
	}
	return "Unknown error"
}

// NumericError is a protocol error that is reported to the client as a
// numeric reply. Args are the positional arguments placed between the
// recipient nickname and the trailing text.
type NumericError struct {
	Code string
	Args []string
}

// NewError returns a NumericError for code with the given arguments.
func NewError(code string, args ...string) *NumericError {
	return &NumericError{Code: code, Args: args}
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%s %s", e.Code, e.Text())
}

// Text renders the reply body, e.g. "#chan :No such channel".
func (e *NumericError) Text() string {
	text := ":" + ErrorText(e.Code)
	if len(e.Args) == 0 {
		return text
	}
	return strings.Join(e.Args, " ") + " " + text
}

// Numeric formats a numeric reply line without the CRLF terminator.
// An empty nick is rendered as "*", the placeholder for clients that
// have not chosen one yet.
func Numeric(server, code, nick, text string) string {
	if nick == "" {
		nick = "*"
	}
	return fmt.Sprintf(":%s %s %s %s", server, code, nick, text)
}
