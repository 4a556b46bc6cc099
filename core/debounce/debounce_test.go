package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/proctor/core/proctor"
)

func TestDebouncer_Admit(t *testing.T) {
	s1 := proctor.SessionKey{StudentID: "S1", RoomID: "R1"}
	s2 := proctor.SessionKey{StudentID: "S2", RoomID: "R1"}
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) time.Time { return t0.Add(d) }

	type signal struct {
		session  proctor.SessionKey
		category proctor.Category
		severe   bool
		at       time.Time
		want     Decision
	}
	emit := Decision{Verdict: Emit, Forward: true}
	drop := Decision{Verdict: Suppress}

	tests := []struct {
		name    string
		signals []signal
	}{
		{
			name: "same category 0.2s apart emits once",
			signals: []signal{
				{s1, proctor.CategoryGazeDeviation, false, at(0), emit},
				{s1, proctor.CategoryGazeDeviation, false, at(200 * time.Millisecond), drop},
			},
		},
		{
			name: "same category 2s apart emits twice",
			signals: []signal{
				{s1, proctor.CategoryGazeDeviation, false, at(0), emit},
				{s1, proctor.CategoryGazeDeviation, false, at(2 * time.Second), emit},
			},
		},
		{
			name: "window boundary is suppressed",
			signals: []signal{
				{s1, proctor.CategoryGazeDeviation, false, at(0), emit},
				{s1, proctor.CategoryGazeDeviation, false, at(DefaultWindow), drop},
			},
		},
		{
			name: "suppressed signals do not extend the window",
			signals: []signal{
				{s1, proctor.CategoryGazeDeviation, false, at(0), emit},
				{s1, proctor.CategoryGazeDeviation, false, at(1 * time.Second), drop},
				{s1, proctor.CategoryGazeDeviation, false, at(1600 * time.Millisecond), emit},
			},
		},
		{
			name: "categories and students are independent",
			signals: []signal{
				{s1, proctor.CategoryGazeDeviation, false, at(0), emit},
				{s1, proctor.CategoryPostureAsymmetry, false, at(100 * time.Millisecond), emit},
				{s2, proctor.CategoryGazeDeviation, false, at(100 * time.Millisecond), emit},
			},
		},
		{
			name: "suppressed severe signal is forwarded",
			signals: []signal{
				{s1, proctor.CategoryDeviceDetected, true, at(0), emit},
				{s1, proctor.CategoryDeviceDetected, true, at(300 * time.Millisecond), Decision{Verdict: Suppress, Forward: true}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(0)
			for i, sig := range tt.signals {
				got := d.Admit(sig.session, sig.category, sig.severe, sig.at)
				assert.Equal(t, sig.want, got, "signal #%d", i)
			}
		})
	}
}

func TestDebouncer_Forget(t *testing.T) {
	d := New(time.Minute)
	t0 := time.Now()
	r1 := proctor.SessionKey{StudentID: "S1", RoomID: "R1"}
	r2 := proctor.SessionKey{StudentID: "S1", RoomID: "R2"}

	assert.True(t, d.Admit(r1, proctor.CategoryGazeDeviation, false, t0).Emitted())
	assert.True(t, d.Admit(r2, proctor.CategoryGazeDeviation, false, t0).Emitted())

	d.Forget("R1")

	assert.True(t, d.Admit(r1, proctor.CategoryGazeDeviation, false, t0.Add(time.Second)).Emitted())
	assert.False(t, d.Admit(r2, proctor.CategoryGazeDeviation, false, t0.Add(time.Second)).Emitted())
}
