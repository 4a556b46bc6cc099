// Package sanction folds violation events into a student's strike count and risk score
// and decides when the student's session is blocked.
//
// Session states: ACTIVE (initial) -> BLOCKED | FINISHED (terminal).
package sanction

import (
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
)

// DefaultStrikeThreshold is the strike count at which a student is soft-blocked.
const DefaultStrikeThreshold = 3

// Sessions is the row storage the engine mutates.
// UpdateSession must run fn and persist its result as one critical section per key.
type Sessions interface {
	UpdateSession(key proctor.SessionKey, fn func(*proctor.StudentSession) error) (proctor.StudentSession, error)
}

type Result struct {
	Decision proctor.Decision
	Session  proctor.StudentSession
	// Blocked is true only for the call that moved the session from ACTIVE to BLOCKED.
	Blocked bool
	// Ignored is true when the session was already BLOCKED or FINISHED.
	Ignored bool
}

type Engine struct {
	sessions  Sessions
	threshold int
	logger    core.Logger
	nowFunc   func() time.Time
}

func NewEngine(sessions Sessions, threshold int, logger core.Logger) *Engine {
	vala.BeginValidation().Validate(
		vala.IsNotNil(sessions, "sessions"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if threshold <= 0 {
		threshold = DefaultStrikeThreshold
	}
	return &Engine{
		sessions:  sessions,
		threshold: threshold,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

func (eng *Engine) Threshold() int { return eng.threshold }

// Sanction applies ev to the session of ev's student. It never performs I/O beyond the row update.
// Storage faults are logged and reported as ALLOWED unless the last known state was BLOCKED.
func (eng *Engine) Sanction(ev proctor.ViolationEvent) Result {
	var res Result
	sess, err := eng.sessions.UpdateSession(ev.Key(), func(s *proctor.StudentSession) error {
		res = eng.apply(s, ev)
		return nil
	})
	if err != nil {
		if errors.Cause(err) == proctor.ErrSessionNotFound {
			eng.logger.Warn(fmt.Sprintf("sanctioning unknown student %s", ev.Key()), err)
		} else {
			eng.logger.Error(fmt.Sprintf("sanctioning %s: %v", ev.Key(), err), errors.Wrap(err, "updating session"))
		}
		return Result{Decision: proctor.DecisionFor(sess.State), Session: sess}
	}
	res.Session = sess
	return res
}

func (eng *Engine) apply(s *proctor.StudentSession, ev proctor.ViolationEvent) Result {
	if s.State.IsTerminal() {
		return Result{Decision: proctor.DecisionFor(s.State), Ignored: true}
	}

	s.StrikeCount++
	s.RiskScore += ev.Weight

	if ev.Severe || s.StrikeCount >= eng.threshold {
		s.State = proctor.StateBlocked
		s.ClosedAt = eng.nowFunc().UTC()
		return Result{Decision: proctor.DecisionBlocked, Blocked: true}
	}
	return Result{Decision: proctor.DecisionAllowed}
}

// Finish moves an ACTIVE session to FINISHED. Terminal sessions are returned unchanged.
func (eng *Engine) Finish(key proctor.SessionKey) (proctor.StudentSession, error) {
	sess, err := eng.sessions.UpdateSession(key, func(s *proctor.StudentSession) error {
		if s.State.IsTerminal() {
			return nil
		}
		s.State = proctor.StateFinished
		s.ClosedAt = eng.nowFunc().UTC()
		return nil
	})
	return sess, errors.Wrap(err, "finishing session")
}
