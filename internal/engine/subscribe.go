package engine

// subscriber is a registered change listener.
type subscriber[S any] struct {
	id int
	fn func(S)
}

// notice is one pending delivery: a settled state and the subscribers that
// must see it.
type notice[S any] struct {
	state S
	subs  []subscriber[S]
}

// Subscribe registers fn to observe settled state.
//
// fn is called with the current settled state (replay-last), then once at
// the end of every drain cycle that folded at least one action, in
// subscription order. The replay and every later notification go through one
// ordered delivery queue, so fn never sees an older state after a newer one.
//
// Notifications are delivered after the busy flag is released: fn may
// Dispatch back into the store inline. Such a dispatch is folded and settled
// before it returns; its notifications are delivered once fn returns.
// Subscribing from inside fn defers the new listener's replay the same way.
//
// The returned function removes the subscription; calling it twice is a no-op.
func (s *Store[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	sub := subscriber[S]{id: id, fn: fn}
	s.subs = append(s.subs, sub)
	s.notes = append(s.notes, notice[S]{state: s.settled, subs: []subscriber[S]{sub}})
	s.mu.Unlock()

	s.notify()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// settle publishes the working state and queues one notice for every current
// subscriber. Called by the drainer only, while it holds the busy flag.
func (s *Store[S]) settle(folded int) {
	s.mu.Lock()
	s.settled = s.working
	subs := make([]subscriber[S], len(s.subs))
	copy(subs, s.subs)
	s.notes = append(s.notes, notice[S]{state: s.settled, subs: subs})
	s.mu.Unlock()

	s.logger.Debug("state settled",
		"folded", folded,
		"seq", s.clock.Current(),
		"subscribers", len(subs))
}

// notify delivers queued notices in order. Only one goroutine delivers at a
// time; a call that finds a delivery in progress returns at once and leaves
// its notices to the running delivery.
func (s *Store[S]) notify() {
	s.mu.Lock()
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	s.mu.Unlock()

	finished := false
	defer func() {
		// A panicking listener must not leave delivery claimed forever.
		if !finished {
			s.mu.Lock()
			s.notifying = false
			s.mu.Unlock()
		}
	}()

	for {
		n, ok := s.nextNotice()
		if !ok {
			finished = true
			return
		}
		for _, sub := range n.subs {
			sub.fn(n.state)
		}
	}
}

// nextNotice pops the oldest notice. When none is left it releases the
// delivery claim under the same lock, so a notice queued concurrently is
// either popped here or delivered by its own notify call.
func (s *Store[S]) nextNotice() (notice[S], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.notes) == 0 {
		s.notifying = false
		return notice[S]{}, false
	}
	n := s.notes[0]
	s.notes[0] = notice[S]{}
	s.notes = s.notes[1:]
	return n, true
}
