package room

import "time"

type timer struct {
	t *time.Timer
}

// schedule replaces the timer registered for key. fn receives its own entry so it can
// check with take that it was not cancelled or replaced in the meantime.
func schedule[K comparable](s *service, timers map[K]*timer, key K, d time.Duration, fn func(*timer)) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if old, ok := timers[key]; ok {
		old.t.Stop()
	}

	e := &timer{}
	timers[key] = e
	e.t = time.AfterFunc(d, func() { fn(e) })
}

func cancel[K comparable](s *service, timers map[K]*timer, key K) bool {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	e, ok := timers[key]
	if !ok {
		return false
	}
	e.t.Stop()
	delete(timers, key)

	return true
}

// take unregisters e if it is still the timer registered for key.
func take[K comparable](s *service, timers map[K]*timer, key K, e *timer) bool {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if timers[key] != e {
		return false
	}
	delete(timers, key)

	return true
}
