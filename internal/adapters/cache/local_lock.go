package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalAssignmentLock is an in-process AssignmentLock for single-instance
// deployments where Redis is not configured. Locks expire by deadline so a
// crashed goroutine cannot wedge an assignment forever.
type LocalAssignmentLock struct {
	mu    sync.Mutex
	holds map[uuid.UUID]localHold
}

type localHold struct {
	token    string
	deadline time.Time
}

func NewLocalAssignmentLock() *LocalAssignmentLock {
	return &LocalAssignmentLock{holds: make(map[uuid.UUID]localHold)}
}

func (l *LocalAssignmentLock) TryAcquire(_ context.Context, assignmentID uuid.UUID, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if hold, ok := l.holds[assignmentID]; ok && now.Before(hold.deadline) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.holds[assignmentID] = localHold{token: token, deadline: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalAssignmentLock) Release(_ context.Context, assignmentID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.holds[assignmentID]; ok && hold.token == token {
		delete(l.holds, assignmentID)
	}
	return nil
}
