package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BookingLockKey names the serialization unit for check-and-reserve.
func BookingLockKey(hotelID, roomTypeID string) string {
	return "booking-lock:" + hotelID + "/" + roomTypeID
}

// KeyedLocker is an in-process domain.Locker: one weight-1 semaphore per key,
// dropped once nobody holds or waits on it.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*lockSlot)}
}

func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		l.release(key, s)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			l.release(key, s)
		})
	}, nil
}

func (l *KeyedLocker) release(key string, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
