package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irislabs/iris/internal/models"
)

// InMemoryStore implements Store and JobRepo with in-process maps. It is
// used by tests and by local runs that do not need persistence.
type InMemoryStore struct {
	mu sync.Mutex

	users      map[string]models.User // key: channel + "\x00" + sourceID
	states     map[int64]models.UserState
	sessions   map[int64]models.Session
	requests   map[int64]models.Request
	jobs       map[string]Job
	nextUserID int64
	nextSessID int64
	nextReqID  int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]models.User),
		states:   make(map[int64]models.UserState),
		sessions: make(map[int64]models.Session),
		requests: make(map[int64]models.Request),
		jobs:     make(map[string]Job),
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetOrCreateUser(channel models.Channel, sourceID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(channel) + "\x00" + sourceID
	if u, ok := s.users[key]; ok {
		return u, nil
	}
	s.nextUserID++
	now := time.Now().UTC()
	u := models.User{ID: s.nextUserID, Channel: channel, SourceID: sourceID, CreatedAt: now}
	s.users[key] = u
	s.states[u.ID] = models.UserState{UserID: u.ID, State: models.StateIdle, UpdatedAt: now}
	return u, nil
}

func (s *InMemoryStore) GetUserState(userID int64) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *InMemoryStore) UpdateUserState(userID int64, patch StatePatch) error {
	if patch.IsZero() {
		return models.ErrInvalidStatePatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if patch.State != nil {
		st.State = *patch.State
	}
	if patch.Language != nil {
		st.Language = *patch.Language
	}
	if patch.TaskID != nil {
		st.TaskID = *patch.TaskID
	}
	st.UpdatedAt = time.Now().UTC()
	s.states[userID] = st
	return nil
}

func (s *InMemoryStore) CreateSession(userID int64, department models.Department) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSessID++
	sess := models.Session{
		ID:         s.nextSessID,
		UserID:     userID,
		Department: department,
		CreatedAt:  time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *InMemoryStore) LatestSession(userID int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if sess.UserID != userID {
			continue
		}
		if latest == nil || sess.ID > latest.ID {
			latest = &sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *InMemoryStore) SetSessionConfirmation(sessionID int64, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	sess.ConfirmationNumber = number
	s.sessions[sessionID] = sess
	return nil
}

func (s *InMemoryStore) AddRequest(userID, sessionID int64, body string) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReqID++
	req := models.Request{
		ID:        s.nextReqID,
		UserID:    userID,
		SessionID: sessionID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *InMemoryStore) SessionRequests(sessionID int64) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Request
	for _, req := range s.requests {
		if req.SessionID == sessionID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	s.jobs[id] = Job{
		ID:          id,
		Kind:        kind,
		RunAt:       runAt.UTC(),
		PayloadJSON: payloadJSON,
		Status:      JobStatusQueued,
		MaxAttempts: defaultMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return id, nil
}

func (s *InMemoryStore) ClaimDueJobs(now time.Time, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for _, j := range s.jobs {
		if j.Status == JobStatusQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	lockTime := time.Now().UTC()
	for i := range due {
		due[i].Status = JobStatusRunning
		due[i].LockedAt = &lockTime
		due[i].UpdatedAt = lockTime
		s.jobs[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *InMemoryStore) CompleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	j.Status = JobStatusDone
	j.LockedAt = nil
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *InMemoryStore) FailJob(id string, errMsg string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	j.Attempt++
	j.LastError = errMsg
	j.LockedAt = nil
	if j.Attempt >= j.MaxAttempts {
		j.Status = JobStatusFailed
	} else {
		j.Status = JobStatusQueued
		j.RunAt = nextRunAt.UTC()
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *InMemoryStore) CancelJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != JobStatusQueued {
		return nil
	}
	j.Status = JobStatusCanceled
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *InMemoryStore) RequeueStaleRunningJobs(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.Status == JobStatusRunning && j.LockedAt != nil && j.LockedAt.Before(staleBefore) {
			j.Status = JobStatusQueued
			j.LockedAt = nil
			j.UpdatedAt = time.Now().UTC()
			s.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) GetJob(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := j
	return &out, nil
}
