package medication

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LearnState is the progress of a tag-learning session.
type LearnState string

// Learn states.
const (
	LearnWaiting   LearnState = "waiting"
	LearnCaptured  LearnState = "captured"
	LearnCancelled LearnState = "cancelled"
	LearnExpired   LearnState = "expired"
)

// DefaultLearnTimeout bounds a session when no timeout is given.
const DefaultLearnTimeout = 2 * time.Minute

// learnRetention is how long finished sessions stay readable.
const learnRetention = 15 * time.Minute

// LearnSession waits for the next tag scan so a setup UI can bind it to a
// medication. It is independent of every Manager.
type LearnSession struct {
	ID        string     `json:"id"`
	State     LearnState `json:"state"`
	TagID     string     `json:"tag_id,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// TagLearner tracks tag-learning sessions. All methods are safe for concurrent use.
type TagLearner struct {
	mu       sync.Mutex
	sessions map[string]*LearnSession
	fallback time.Duration
	now      func() time.Time
}

// NewTagLearner creates an empty learner.
func NewTagLearner() *TagLearner {
	return &TagLearner{
		sessions: make(map[string]*LearnSession),
		fallback: DefaultLearnTimeout,
		now:      time.Now,
	}
}

// SetDefaultTimeout changes the window used when Start is given no timeout.
// Non-positive values are ignored.
func (l *TagLearner) SetDefaultTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.fallback = d
	l.mu.Unlock()
}

// Start opens a session that captures the next offered tag before timeout elapses.
func (l *TagLearner) Start(timeout time.Duration) LearnSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timeout <= 0 {
		timeout = l.fallback
	}

	now := l.now()
	l.prune(now)

	s := &LearnSession{
		ID:        uuid.NewString(),
		State:     LearnWaiting,
		StartedAt: now,
		ExpiresAt: now.Add(timeout),
	}
	l.sessions[s.ID] = s
	return *s
}

// Offer hands a scanned tag to every waiting session and reports how many captured it.
func (l *TagLearner) Offer(tagID string) int {
	if tagID == "" {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	captured := 0
	for _, s := range l.sessions {
		l.expire(s, now)
		if s.State == LearnWaiting {
			s.State = LearnCaptured
			s.TagID = tagID
			captured++
		}
	}
	return captured
}

// Cancel stops a waiting session. Cancelling a finished session leaves it unchanged.
func (l *TagLearner) Cancel(id string) (LearnSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return LearnSession{}, ErrSessionNotFound
	}
	l.expire(s, l.now())
	if s.State == LearnWaiting {
		s.State = LearnCancelled
	}
	return *s, nil
}

// Get returns the current progress of a session.
func (l *TagLearner) Get(id string) (LearnSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return LearnSession{}, ErrSessionNotFound
	}
	l.expire(s, l.now())
	return *s, nil
}

func (l *TagLearner) expire(s *LearnSession, now time.Time) {
	if s.State == LearnWaiting && !now.Before(s.ExpiresAt) {
		s.State = LearnExpired
	}
}

func (l *TagLearner) prune(now time.Time) {
	for id, s := range l.sessions {
		if now.Sub(s.ExpiresAt) > learnRetention {
			delete(l.sessions, id)
		}
	}
}
