package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// localDayLocker serializes doctor-days with in-process mutexes. It backs
// tests and single-node deployments where Redis is not running.
type localDayLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalDayLocker creates a process-local Locker.
func NewLocalDayLocker() Locker {
	return &localDayLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localDayLocker) WithDayLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%s", doctorID.String(), date.Format("2006-01-02"))

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
