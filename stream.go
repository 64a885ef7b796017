// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

// CounterStream tracks whether counting of one kind is currently enabled
// and keeps the chain of counters alive across enable/disable transitions.
// While enabled it holds the open counter; on disable that counter is
// ended and kept as the dependency for the next enable, so the logical
// value accumulates across gaps.
//
// Streams are owned by the Cache and share its single-submitter model:
// all calls must come from the submitting goroutine.
type CounterStream struct {
	cache   *Cache
	kind    Kind
	current *HostCounter
	last    *HostCounter
}

// Update transitions the stream to the given state. Enabling an enabled
// stream or disabling a disabled one is a no-op.
func (s *CounterStream) Update(enabled bool) error {
	if enabled {
		return s.Enable()
	}
	s.Disable()
	return nil
}

// Enable opens a new counter chained onto the last ended one. No-op if
// the stream is already counting.
func (s *CounterStream) Enable() error {
	if s.current != nil {
		return nil
	}
	ctr, err := s.cache.NewCounter(s.kind, s.last)
	if err != nil {
		return err
	}
	s.current = ctr
	return nil
}

// Disable ends the open counter and retains it as the dependency for the
// next Enable. No-op if the stream is not counting.
func (s *CounterStream) Disable() {
	if s.current == nil {
		return
	}
	s.current.EndQuery()
	s.last = s.current
	s.current = nil
}

// Enabled reports whether the stream is currently counting.
func (s *CounterStream) Enabled() bool { return s.current != nil }

// Current returns the open counter, or nil when disabled.
func (s *CounterStream) Current() *HostCounter { return s.current }

// Last returns the most recently ended counter, or nil if none.
func (s *CounterStream) Last() *HostCounter { return s.last }

// Reset closes the stream's counters and drops the chain. The open
// counter, if any, is closed unended; its slot returns to the pool without
// being read.
func (s *CounterStream) Reset() {
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	if s.last != nil {
		s.last.Close()
		s.last = nil
	}
}
