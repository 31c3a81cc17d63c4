package state

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

// Store keeps one Session per chat id. Sessions are evicted after ttl without
// a Save; a zero ttl keeps them for the process lifetime.
type Store[T any] struct {
	cache   *gocache.Cache
	newData func() T
	locks   chatLocks
}

// NewStore builds a store. newData seeds Data for fresh sessions; nil yields the zero value.
func NewStore[T any](ttl time.Duration, newData func() T) *Store[T] {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}
	if newData == nil {
		newData = func() T {
			var zero T
			return zero
		}
	}
	return &Store[T]{
		cache:   gocache.New(expiration, cleanup),
		newData: newData,
		locks:   chatLocks{held: make(map[int64]*chatLock)},
	}
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Get returns the chat session, creating an idle one when absent. The returned
// pointer is shared; callers mutate it while holding Lock and then Save.
func (s *Store[T]) Get(chatID int64) *Session[T] {
	if v, ok := s.cache.Get(key(chatID)); ok {
		if sess, ok := v.(*Session[T]); ok {
			return sess
		}
	}
	sess := &Session[T]{Flow: FlowNone, State: StateIdle, Data: s.newData()}
	s.cache.SetDefault(key(chatID), sess)
	return sess
}

// Peek returns the chat session without creating one.
func (s *Store[T]) Peek(chatID int64) (*Session[T], bool) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session[T])
	return sess, ok
}

// Save stores sess and refreshes its idle deadline.
func (s *Store[T]) Save(chatID int64, sess *Session[T]) {
	if sess == nil {
		return
	}
	s.cache.SetDefault(key(chatID), sess)
}

// Clear drops the chat session entirely.
func (s *Store[T]) Clear(chatID int64) {
	s.cache.Delete(key(chatID))
}

// InProgress reports whether the chat has an active flow.
func (s *Store[T]) InProgress(chatID int64) bool {
	sess, ok := s.Peek(chatID)
	return ok && sess.Active()
}

// Len returns the number of stored sessions, expired ones included until the janitor runs.
func (s *Store[T]) Len() int {
	return s.cache.ItemCount()
}

// Lock serializes work for one chat. It blocks until the chat is free or ctx
// is done; the returned func releases the lock and must be called exactly once.
func (s *Store[T]) Lock(ctx context.Context, chatID int64) (func(), error) {
	return s.locks.acquire(ctx, chatID)
}

type chatLock struct {
	sem  *semaphore.Weighted
	refs int
}

// chatLocks hands out one weighted semaphore per chat and forgets it once no
// goroutine holds or waits for it.
type chatLocks struct {
	mu   sync.Mutex
	held map[int64]*chatLock
}

func (l *chatLocks) acquire(ctx context.Context, chatID int64) (func(), error) {
	l.mu.Lock()
	cl, ok := l.held[chatID]
	if !ok {
		cl = &chatLock{sem: semaphore.NewWeighted(1)}
		l.held[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	if err := cl.sem.Acquire(ctx, 1); err != nil {
		l.release(chatID, cl, false)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(chatID, cl, true) })
	}, nil
}

func (l *chatLocks) release(chatID int64, cl *chatLock, acquired bool) {
	if acquired {
		cl.sem.Release(1)
	}
	l.mu.Lock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.held, chatID)
	}
	l.mu.Unlock()
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
