package irc

import (
	"fmt"
	"strings"
)

// Message represents an IRC message
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ParseMessage parses one protocol line. Trailing CR/LF characters are
// ignored. It returns nil for empty lines and for a prefix that is not
// followed by a command.
func ParseMessage(line string) *Message {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}

	msg := &Message{
		Params: make([]string, 0),
	}

	// Check if the message has a prefix
	if line[0] == ':' {
		prefix, rest, found := strings.Cut(line[1:], " ")
		if !found {
			return nil
		}
		msg.Prefix = prefix
		line = strings.TrimLeft(rest, " ")
	}
	if line == "" {
		return nil
	}

	command, rest, _ := strings.Cut(line, " ")
	if command == "" {
		return nil
	}
	msg.Command = strings.ToUpper(command)

	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}

		// The trailing parameter swallows the remainder verbatim
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}

		var param string
		param, rest, _ = strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
	}

	return msg
}

// Param returns the i-th parameter or "" when there is none.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// String returns the string representation of the message
func (m *Message) String() string {
	var builder strings.Builder

	// Add prefix if present
	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	builder.WriteString(m.Command)

	for i, param := range m.Params {
		builder.WriteString(" ")

		// The last parameter needs the trailing marker when it is empty,
		// contains a space or starts with a colon.
		if i == len(m.Params)-1 && (param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}

// IsChannelName reports whether name carries a channel prefix.
func IsChannelName(name string) bool {
	return name != "" && (name[0] == '#' || name[0] == '&')
}

// IsValidNickname reports whether nick is non-empty and uses only
// letters, digits and []{}\|-_^.
func IsValidNickname(nick string) bool {
	if nick == "" {
		return false
	}
	for i := 0; i < len(nick); i++ {
		c := nick[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte(`[]{}\|-_^`, c) >= 0:
		default:
			return false
		}
	}
	return true
}
