package followup

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock records timers and fires them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// fireNext fires the earliest live timer with the given delay.
func (c *fakeClock) fireNext(d time.Duration) bool {
	c.mu.Lock()
	var target *fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.delay == d {
			target = t
			break
		}
	}
	if target != nil {
		target.fired = true
	}
	c.mu.Unlock()
	if target == nil {
		return false
	}
	target.fn()
	return true
}

// fireStopped runs a timer callback even though Stop was called, mimicking a
// timer that had already fired when Cancel ran.
func (c *fakeClock) fireStopped(d time.Duration) bool {
	c.mu.Lock()
	var target *fakeTimer
	for _, t := range c.timers {
		if t.stopped && t.delay == d {
			target = t
			break
		}
	}
	c.mu.Unlock()
	if target == nil {
		return false
	}
	target.fn()
	return true
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type sentMessage struct {
	to   string
	body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, sentMessage{to: to, body: body})
	return "SM-test", nil
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

var errSend = errors.New("transport down")
