// Package debounce turns bursts of raw signals into at most one violation event
// per (student, category) per cooldown window.
package debounce

import (
	"sync"
	"time"

	"github.com/trezcool/proctor/core/proctor"
)

// DefaultWindow is the minimum time between two emitted events of one category for one student.
const DefaultWindow = 1500 * time.Millisecond

type Verdict int

const (
	Suppress Verdict = iota
	Emit
)

func (v Verdict) String() string {
	if v == Emit {
		return "emit"
	}
	return "suppress"
}

// Decision tells the caller what to do with a raw signal.
// A suppressed severe signal is still forwarded to the blocking decision.
type Decision struct {
	Verdict Verdict
	Forward bool
}

func (d Decision) Emitted() bool { return d.Verdict == Emit }

type key struct {
	session  proctor.SessionKey
	category proctor.Category
}

type Debouncer struct {
	window time.Duration

	mu          sync.Mutex
	lastEmitted map[key]time.Time
}

func New(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:      window,
		lastEmitted: make(map[key]time.Time),
	}
}

func (d *Debouncer) Window() time.Duration { return d.window }

// Admit decides whether a raw signal observed at `at` becomes a violation event.
// Only emitted signals reset the window; suppressed ones are dropped with their weight.
func (d *Debouncer) Admit(session proctor.SessionKey, category proctor.Category, severe bool, at time.Time) Decision {
	k := key{session: session, category: category}

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastEmitted[k]; ok && at.Sub(last) <= d.window {
		return Decision{Verdict: Suppress, Forward: severe}
	}
	d.lastEmitted[k] = at
	return Decision{Verdict: Emit, Forward: true}
}

// Forget drops the state of every student of a room.
func (d *Debouncer) Forget(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.lastEmitted {
		if k.session.RoomID == roomID {
			delete(d.lastEmitted, k)
		}
	}
}
