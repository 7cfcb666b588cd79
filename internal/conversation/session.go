package conversation

import (
	"sync"

	"github.com/i474232898/weather-bot/internal/weather"
)

// State is the position of a user inside the set-city flow.
type State int

const (
	Idle State = iota
	AwaitingCityQuery
	AwaitingCitySelection
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCityQuery:
		return "awaiting_city_query"
	case AwaitingCitySelection:
		return "awaiting_city_selection"
	default:
		return "unknown"
	}
}

// Session exists only while a user is inside the set-city flow.
type Session struct {
	UserID    int64
	State     State
	PromptRef *MessageRef
	LastQuery string
	LastPage  int
	Shown     []weather.City // candidates on the current page
}

// Registry holds live sessions. A missing entry means Idle.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]Session)}
}

// Get returns a copy of the user's session.
func (r *Registry) Get(userID int64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Put stores s; a session in Idle is removed instead.
func (r *Registry) Put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.State == Idle {
		delete(r.sessions, s.UserID)
		return
	}
	r.sessions[s.UserID] = s
}

func (r *Registry) Clear(userID int64) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

// StateOf returns the user's current state.
func (r *Registry) StateOf(userID int64) State {
	s, ok := r.Get(userID)
	if !ok {
		return Idle
	}
	return s.State
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
