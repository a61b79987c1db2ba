package bridge

import (
	"sync"

	"golang.org/x/crypto/ssh"
)

// Slot is the single proxy-channel cell of a connection. Installing a new
// channel displaces the previous occupant, which gets closed so the client
// is never left with two half-alive sessions.
type Slot struct {
	mu      sync.Mutex
	channel ssh.Channel
	proc    *Bridge
}

// Install stashes ch as the connection's proxy channel. proc is the
// subprocess bridge owning the channel, or nil for a direct handoff.
func (s *Slot) Install(ch ssh.Channel, proc *Bridge) {
	s.mu.Lock()
	prev := s.channel
	s.channel = ch
	s.proc = proc
	s.mu.Unlock()
	if prev != nil && prev != ch {
		_ = prev.Close()
	}
}

// Get returns the stashed channel and its owning bridge. The channel is nil
// when nothing was installed; the bridge is nil for a direct handoff.
func (s *Slot) Get() (ssh.Channel, *Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel, s.proc
}
