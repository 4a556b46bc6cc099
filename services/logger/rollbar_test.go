package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
)

func TestPersonOf(t *testing.T) {
	tests := []struct {
		name   string
		arg    interface{}
		want   Person
		wantOk bool
	}{
		{name: "error", arg: errors.New("boom"), wantOk: false},
		{name: "person", arg: Person{ID: "42", Username: "admin"}, want: Person{ID: "42", Username: "admin"}, wantOk: true},
		{
			name:   "student session",
			arg:    proctor.StudentSession{StudentID: "s1", RoomID: "r1", DisplayName: "Ana"},
			want:   Person{ID: "r1/s1", Username: "Ana"},
			wantOk: true,
		},
		{
			name:   "room",
			arg:    proctor.Room{ID: "r1", InstructorID: "prof", InstructorEmail: "prof@school.test"},
			want:   Person{ID: "prof", Email: "prof@school.test"},
			wantOk: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := personOf(tt.arg)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "TEST : ", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)

	sess := proctor.StudentSession{StudentID: "s1", RoomID: "r1"}
	logger.Warn("student blocked", sess, errors.New("third strike"))

	out := buf.String()
	assert.Contains(t, out, "TEST : student blocked")
	assert.Contains(t, out, "third strike")

	args := logger.prepare("msg", []interface{}{sess, 42})
	assert.Equal(t, []interface{}{"msg", 42}, args)
}
