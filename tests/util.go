package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
)

// Logger records log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func NewSession(studentID, roomID string, enteredAt ...time.Time) proctor.StudentSession {
	tstamp := time.Now().UTC()
	if len(enteredAt) > 0 {
		tstamp = enteredAt[0].UTC()
	}
	return proctor.StudentSession{
		StudentID:     studentID,
		DisplayName:   "Student " + studentID,
		RoomID:        roomID,
		State:         proctor.StateActive,
		CameraStatus:  proctor.CameraOK,
		EnteredAt:     tstamp,
		LastHeartbeat: tstamp,
	}
}

func NewEvent(studentID, roomID string, category proctor.Category, at ...time.Time) proctor.ViolationEvent {
	tstamp := time.Now().UTC()
	if len(at) > 0 {
		tstamp = at[0].UTC()
	}
	return proctor.ViolationEvent{
		StudentID:   studentID,
		RoomID:      roomID,
		Category:    category,
		Weight:      category.Weight(),
		Severe:      category.Severe(),
		Timestamp:   tstamp,
		EvidenceRef: proctor.EvidencePending,
	}
}
