package commands

import "sync"

// Rooms remembers which channel opened which auction room so commands can
// omit the code and broadcasts know where to go.
type Rooms struct {
	mu       sync.RWMutex
	codes    map[string]string // channel -> code
	channels map[string]string // session id -> channel
}

// NewRooms returns an empty registry.
func NewRooms() *Rooms {
	return &Rooms{
		codes:    make(map[string]string),
		channels: make(map[string]string),
	}
}

// Bind makes code the default room of channel. A channel holds one room at
// a time; binding a new one replaces it.
func (r *Rooms) Bind(channel, code, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[channel] = code
	r.channels[sessionID] = channel
}

// CodeFor returns the room bound to channel.
func (r *Rooms) CodeFor(channel string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.codes[channel]
	return code, ok
}

// ChannelFor returns the channel a session broadcasts to.
func (r *Rooms) ChannelFor(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[sessionID]
	return ch, ok
}
