package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/repcoach/internal/analysis"
	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/source"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
)

// liveSession is an analysis session owned by the server. Frames for one
// session are processed one at a time under mu.
type liveSession struct {
	id        string
	exercise  string
	known     bool
	createdAt time.Time

	mu       sync.Mutex
	session  *analysis.Session
	lastSeen time.Time

	// done is closed once the session leaves the table.
	done      chan struct{}
	closeOnce sync.Once
}

type sessionStatus struct {
	ID        string         `json:"id"`
	Exercise  string         `json:"exercise"`
	Known     bool           `json:"known"`
	Count     uint32         `json:"rep_count"`
	Phase     analysis.Phase `json:"phase"`
	ROM       float64        `json:"rom"`
	CreatedAt time.Time      `json:"created_at"`
	LastSeen  time.Time      `json:"last_seen"`
}

func (ls *liveSession) process(f source.Frame, now time.Time) (analysis.Result, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lastSeen = now
	return ls.session.ProcessFrame(f.Keypoints, f.Seconds())
}

func (ls *liveSession) reset(now time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lastSeen = now
	ls.session.Reset()
}

func (ls *liveSession) status() sessionStatus {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return sessionStatus{
		ID:        ls.id,
		Exercise:  ls.exercise,
		Known:     ls.known,
		Count:     ls.session.Count(),
		Phase:     ls.session.Phase(),
		ROM:       ls.session.ROM(),
		CreatedAt: ls.createdAt,
		LastSeen:  ls.lastSeen,
	}
}

func (ls *liveSession) idleSince() time.Time {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lastSeen
}

func (ls *liveSession) close() {
	ls.closeOnce.Do(func() { close(ls.done) })
}

func (ls *liveSession) closed() bool {
	select {
	case <-ls.done:
		return true
	default:
		return false
	}
}

// metricLabel keeps unknown exercise IDs out of metric label values.
func (ls *liveSession) metricLabel() string {
	if !ls.known {
		return "unknown"
	}
	return ls.exercise
}

type sessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
	limit    int
	idle     time.Duration
	active   prometheus.Gauge
	now      func() time.Time
}

func newSessionManager(limit int, idle time.Duration, active prometheus.Gauge) *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*liveSession),
		limit:    limit,
		idle:     idle,
		active:   active,
		now:      time.Now,
	}
}

func (m *sessionManager) create(exercise string, p *profile.Profile, known bool) (*liveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit > 0 && len(m.sessions) >= m.limit {
		return nil, ErrTooManySessions
	}

	now := m.now()
	ls := &liveSession{
		id:        uuid.New().String(),
		exercise:  exercise,
		known:     known,
		createdAt: now,
		session:   analysis.NewSession(p),
		lastSeen:  now,
		done:      make(chan struct{}),
	}
	m.sessions[ls.id] = ls
	m.active.Set(float64(len(m.sessions)))
	return ls, nil
}

func (m *sessionManager) get(id string) (*liveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

func (m *sessionManager) remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	ls.close()
	m.active.Set(float64(len(m.sessions)))
	return nil
}

func (m *sessionManager) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// expire drops sessions that have not seen a frame within the idle
// timeout and returns their IDs.
func (m *sessionManager) expire() []string {
	if m.idle <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idle)
	var expired []string
	for id, ls := range m.sessions {
		if ls.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			ls.close()
			expired = append(expired, id)
		}
	}
	m.active.Set(float64(len(m.sessions)))
	return expired
}
