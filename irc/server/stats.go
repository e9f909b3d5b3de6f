package server

import (
	"sort"
	"time"
)

// Stats is an immutable snapshot of server state, published by the event
// loop after every batch so other goroutines never touch loop-owned maps.
type Stats struct {
	ServerName    string         `json:"server_name"`
	Sessions      int            `json:"sessions"`
	Registered    int            `json:"registered"`
	Channels      int            `json:"channels"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ChannelList   []ChannelStats `json:"-"`
}

// ChannelStats describes one channel in a Stats snapshot.
type ChannelStats struct {
	Name      string   `json:"name"`
	Topic     string   `json:"topic"`
	Modes     string   `json:"modes"`
	Members   int      `json:"members"`
	Operators []string `json:"operators"`
}

func (s *Server) publishStats() {
	now := s.now()
	registered := 0
	for _, sess := range s.sessions {
		if sess.Registered() {
			registered++
		}
	}

	channels := make([]ChannelStats, 0, len(s.channels))
	for _, ch := range s.channels {
		var ops []string
		for _, id := range ch.Members() {
			if member := s.sessions[id]; member != nil && ch.IsOperator(id) {
				ops = append(ops, member.Nick())
			}
		}
		channels = append(channels, ChannelStats{
			Name:      ch.Name,
			Topic:     ch.Topic,
			Modes:     ch.ModeString(),
			Members:   ch.MemberCount(),
			Operators: ops,
		})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })

	s.stats.Store(&Stats{
		ServerName:    s.config.Server.Name,
		Sessions:      s.ClientCount(),
		Registered:    registered,
		Channels:      s.ChannelCount(),
		StartedAt:     s.startTime,
		UptimeSeconds: now.Sub(s.startTime).Seconds(),
		UpdatedAt:     now,
		ChannelList:   channels,
	})

	s.metrics.Sessions.Set(float64(s.ClientCount()))
	s.metrics.Channels.Set(float64(s.ChannelCount()))
}

// Stats returns the latest published snapshot. Safe for concurrent use.
func (s *Server) Stats() Stats {
	if st := s.stats.Load(); st != nil {
		return *st
	}
	return Stats{}
}
