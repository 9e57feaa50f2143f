// Package clock abstrae el tiempo para que expiraciones, ventanas de lockdown y
// jobs programados sean testeables. Producción usa Real(); tests usan Fake().
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock es la fuente de tiempo de los servicios.
type Clock interface {
	Now() time.Time
	// AfterFunc ejecuta f cuando pasa d. El Timer permite cancelarlo.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer es un callback pendiente.
type Timer interface {
	// Stop devuelve true si canceló el callback antes de que se ejecute.
	Stop() bool
}

type realClock struct{}

// Real devuelve un Clock basado en el paquete time.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// FakeClock es un Clock determinístico: el tiempo sólo avanza con Advance.
// Los callbacks vencidos se ejecutan sincrónicamente dentro de Advance, en
// orden de deadline y fuera del lock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	f        func()
	done     bool
}

// Fake crea un FakeClock parado en initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	if d > 0 {
		c.waiters = append(c.waiters, t)
		c.mu.Unlock()
		return t
	}
	t.done = true
	c.mu.Unlock()
	f()
	return t
}

// Advance mueve el reloj y dispara los callbacks vencidos.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*fakeTimer
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		switch {
		case w.done:
		case !w.deadline.After(now):
			w.done = true
			due = append(due, w)
		default:
			pending = append(pending, w)
		}
	}
	c.waiters = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		w.f()
	}
}

// Pending devuelve la cantidad de callbacks aún no disparados ni cancelados.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.done {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
