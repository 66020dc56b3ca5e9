package session

import "sync"

// Registry tracks the live session per learner. The flush-retry schedule
// walks it looking for sessions whose Finish failed mid-write.
type Registry struct {
	sessions map[string]*Session

	mx sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session, 100)}
}

func (r *Registry) Get(username string) (*Session, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

func (r *Registry) Put(s *Session) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.sessions[s.username] = s
}

func (r *Registry) Remove(username string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.sessions, username)
}

// Dirty returns the sessions still holding unflushed buffers.
func (r *Registry) Dirty() []*Session {
	r.mx.RLock()
	defer r.mx.RUnlock()

	var res []*Session
	for _, s := range r.sessions {
		if s.Dirty() {
			res = append(res, s)
		}
	}
	return res
}
