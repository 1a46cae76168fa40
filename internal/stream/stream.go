// Package stream is a small synchronous observer toolkit.
//
// A Subject holds the latest value it was given and pushes every new value to
// its subscribers, in subscription order, on the caller's goroutine. New
// subscribers immediately receive the latest value, if any. Operators are hot:
// Map and CombineLatest subscribe to their sources as soon as they are built
// and publish into a fresh Subject, so each derivation runs once per upstream
// emission no matter how many subscribers it has.
package stream

import "sync"

// Observable is anything that can be subscribed to.
type Observable[T any] interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Subject is an Observable that can also be pushed to.
type Subject[T any] struct {
	mu     sync.Mutex
	subs   []*subscription[T]
	latest T
	has    bool
	closed bool
}

type subscription[T any] struct {
	fn func(T)
}

// NewSubject returns an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Of returns a Subject that already holds v.
func Of[T any](v T) *Subject[T] {
	return &Subject[T]{latest: v, has: true}
}

// Next stores v and delivers it to every current subscriber.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.latest, s.has = v, true
	subs := make([]*subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Subscribe implements Observable.
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	sub := &subscription[T]{fn: fn}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	latest, has := s.latest, s.has
	s.mu.Unlock()

	if has {
		fn(latest)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(sub) })
	}
}

// Value returns the latest value and whether one was ever pushed.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.has
}

// Close drops all subscribers; later calls to Next are ignored.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
}

func (s *Subject[T]) remove(sub *subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Map publishes fn(v) for every value of src.
func Map[A, B any](src Observable[A], fn func(A) B) *Subject[B] {
	out := NewSubject[B]()
	src.Subscribe(func(a A) { out.Next(fn(a)) })
	return out
}

// CombineLatest2 publishes fn(a, b) whenever either source emits, once both
// have emitted at least once.
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], fn func(A, B) R) *Subject[R] {
	out := NewSubject[R]()
	var (
		mu         sync.Mutex
		va         A
		vb         B
		hasA, hasB bool
	)
	emit := func() {
		mu.Lock()
		if !hasA || !hasB {
			mu.Unlock()
			return
		}
		x, y := va, vb
		mu.Unlock()
		out.Next(fn(x, y))
	}
	a.Subscribe(func(v A) {
		mu.Lock()
		va, hasA = v, true
		mu.Unlock()
		emit()
	})
	b.Subscribe(func(v B) {
		mu.Lock()
		vb, hasB = v, true
		mu.Unlock()
		emit()
	})
	return out
}

// CombineLatest3 is CombineLatest2 over three sources.
func CombineLatest3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], fn func(A, B, C) R) *Subject[R] {
	ab := CombineLatest2(a, b, func(x A, y B) pair[A, B] { return pair[A, B]{x, y} })
	return CombineLatest2[pair[A, B], C, R](ab, c, func(p pair[A, B], z C) R { return fn(p.a, p.b, z) })
}

type pair[A, B any] struct {
	a A
	b B
}
