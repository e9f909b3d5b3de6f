package server

import (
	"slices"

	"github.com/presbrey/ircserv/irc"
)

// Identity holds the IRC-visible attributes of a participant. It is owned
// by exactly one Session and refers to channels by name only.
type Identity struct {
	Nickname    string
	Username    string
	Realname    string
	Hostname    string
	Modes       UserModes
	Away        bool
	AwayMessage string

	channels []string
}

// NewIdentity creates an empty identity for a peer host.
func NewIdentity(hostname string) *Identity {
	return &Identity{Hostname: hostname}
}

// Prefix returns nick!user@host.
func (i *Identity) Prefix() string {
	return irc.FormatHostmask(i.Nickname, i.Username, i.Hostname)
}

// Channels returns the joined channel names in join order.
func (i *Identity) Channels() []string {
	return slices.Clone(i.channels)
}

// InChannel reports whether the identity joined name.
func (i *Identity) InChannel(name string) bool {
	return slices.Contains(i.channels, name)
}

func (i *Identity) joinChannel(name string) {
	if !i.InChannel(name) {
		i.channels = append(i.channels, name)
	}
}

func (i *Identity) leaveChannel(name string) {
	i.channels = slices.DeleteFunc(i.channels, func(c string) bool { return c == name })
}
