//go:build !linux

package transport

import "time"

// Sys is unavailable outside Linux; every operation fails with ErrUnsupported.
type Sys struct {
	Backlog int
}

func New() *Sys {
	return &Sys{Backlog: DefaultBacklog}
}

func (s *Sys) Listen(port int) (Handle, error)         { return -1, ErrUnsupported }
func (s *Sys) LocalPort(h Handle) (int, error)         { return 0, ErrUnsupported }
func (s *Sys) Accept(l Handle) (Handle, string, error) { return -1, "", ErrUnsupported }
func (s *Sys) Read(h Handle, buf []byte) (int, error)  { return 0, ErrUnsupported }
func (s *Sys) Write(h Handle, p []byte) (int, error)   { return 0, ErrUnsupported }
func (s *Sys) Close(h Handle) error                    { return ErrUnsupported }
func (s *Sys) Wait(set []PollEntry, timeout time.Duration) (int, error) {
	return 0, ErrUnsupported
}
