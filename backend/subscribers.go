package backend

import (
	"fmt"
	"sync"

	"github.com/kbukum/bizbackend/logger"
)

// Subscribers is an ordered set of callbacks. A panicking callback is logged
// and does not stop delivery to the ones after it.
type Subscribers[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
	name   string
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewSubscribers creates an empty set. name tags log entries.
func NewSubscribers[T any](name string) *Subscribers[T] {
	return &Subscribers[T]{name: name}
}

// Add registers fn and returns its idempotent unsubscribe function.
func (s *Subscribers[T]) Add(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Subscribers[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered callbacks.
func (s *Subscribers[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Notify calls every callback in registration order.
func (s *Subscribers[T]) Notify(v T) {
	s.mu.Lock()
	snapshot := make([]subscription[T], len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		s.call(sub, v)
	}
}

func (s *Subscribers[T]) call(sub subscription[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get("backend").Error("subscriber panicked", logger.Fields(
				"subscribers", s.name,
				"subscriber_id", sub.id,
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	sub.fn(v)
}

// AuthListeners is the listener set adapters embed for OnAuthStateChange.
type AuthListeners struct {
	set *Subscribers[AuthEvent]
	mu  sync.Mutex
}

// Subscribe registers fn.
func (l *AuthListeners) Subscribe(fn AuthListener) (unsubscribe func()) {
	return l.subscribers().Add(fn)
}

// Emit delivers an event to every listener.
func (l *AuthListeners) Emit(typ AuthEventType, session *AuthSession) {
	l.subscribers().Notify(AuthEvent{Type: typ, Session: session})
}

func (l *AuthListeners) subscribers() *Subscribers[AuthEvent] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set == nil {
		l.set = NewSubscribers[AuthEvent]("auth")
	}
	return l.set
}
