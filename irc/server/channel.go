package server

import (
	"slices"
	"strconv"
	"time"
)

// Channel represents an IRC channel. Members and operators are stored as
// session IDs; the invite list is keyed by nickname.
type Channel struct {
	Name       string
	Topic      string
	TopicSetBy string
	TopicSetAt time.Time
	CreatedAt  time.Time
	Modes      ChannelModes

	members   []string
	operators map[string]bool
	invites   map[string]bool
}

// ChannelModes represents the modes of a channel
type ChannelModes struct {
	InviteOnly             bool   // i - Invite-only channel (+i)
	TopicSettableByOpsOnly bool   // t - Topic settable by channel operators only (+t)
	Key                    string // k - Channel key (+k), empty when unset
	UserLimit              int    // l - User limit (+l), 0 when unset
}

// NewChannel creates a new channel
func NewChannel(name string, now time.Time) *Channel {
	return &Channel{
		Name:      name,
		CreatedAt: now,
		operators: make(map[string]bool),
		invites:   make(map[string]bool),
	}
}

// AddMember adds a session to the channel and consumes any invite held
// by its nickname.
func (c *Channel) AddMember(id, nick string) {
	if !c.IsMember(id) {
		c.members = append(c.members, id)
	}
	delete(c.invites, nick)
}

// RemoveMember removes a session from the channel, including its
// operator status.
func (c *Channel) RemoveMember(id string) {
	c.members = slices.DeleteFunc(c.members, func(m string) bool { return m == id })
	delete(c.operators, id)
}

// IsMember checks if a session is a member of the channel
func (c *Channel) IsMember(id string) bool {
	return slices.Contains(c.members, id)
}

// Members returns member session IDs in join order.
func (c *Channel) Members() []string {
	return slices.Clone(c.members)
}

// MemberCount returns the number of members in the channel
func (c *Channel) MemberCount() int {
	return len(c.members)
}

// AddOperator grants operator status to a current member. It returns
// false when id is not a member.
func (c *Channel) AddOperator(id string) bool {
	if !c.IsMember(id) {
		return false
	}
	c.operators[id] = true
	return true
}

// RemoveOperator revokes operator status.
func (c *Channel) RemoveOperator(id string) {
	delete(c.operators, id)
}

// IsOperator checks if a session is a channel operator
func (c *Channel) IsOperator(id string) bool {
	return c.operators[id]
}

// AddInvite adds a nickname to the invite list
func (c *Channel) AddInvite(nick string) {
	c.invites[nick] = true
}

// IsInvited checks if a nickname is on the invite list
func (c *Channel) IsInvited(nick string) bool {
	return c.invites[nick]
}

// SetTopic sets the channel topic
func (c *Channel) SetTopic(topic, setBy string, at time.Time) {
	c.Topic = topic
	c.TopicSetBy = setBy
	c.TopicSetAt = at
}

// SetKey sets or, with "", clears the channel key.
func (c *Channel) SetKey(key string) {
	c.Modes.Key = key
}

// SetLimit sets the member limit. Values below 1 clear it.
func (c *Channel) SetLimit(limit int) {
	if limit < 1 {
		limit = 0
	}
	c.Modes.UserLimit = limit
}

// HasMode reports whether a channel flag is active.
func (c *Channel) HasMode(mode rune) bool {
	switch mode {
	case 'i':
		return c.Modes.InviteOnly
	case 't':
		return c.Modes.TopicSettableByOpsOnly
	case 'k':
		return c.Modes.Key != ""
	case 'l':
		return c.Modes.UserLimit > 0
	}
	return false
}

// SetFlag toggles one of the parameterless flags i and t.
func (c *Channel) SetFlag(mode rune, enable bool) {
	switch mode {
	case 'i':
		c.Modes.InviteOnly = enable
	case 't':
		c.Modes.TopicSettableByOpsOnly = enable
	}
}

// Full reports whether the member limit is reached.
func (c *Channel) Full() bool {
	return c.Modes.UserLimit > 0 && len(c.members) >= c.Modes.UserLimit
}

// ModeString returns the mode string for the channel: "+" followed by the
// active flags in itkl order, then the key and limit values.
func (c *Channel) ModeString() string {
	modes := "+"
	var params string

	for _, mode := range "itkl" {
		if c.HasMode(mode) {
			modes += string(mode)
		}
	}
	if c.HasMode('k') {
		params += " " + c.Modes.Key
	}
	if c.HasMode('l') {
		params += " " + strconv.Itoa(c.Modes.UserLimit)
	}

	return modes + params
}
