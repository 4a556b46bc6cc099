package inmemdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/tests"
)

func TestRepositories(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)

	rooms := NewRoomRepository(db)
	sessions := NewSessionRepository(db)
	incidents := NewIncidentRepository(db)

	t.Run("rooms", func(t *testing.T) {
		_, err := rooms.CreateRoom(proctor.Room{ID: "r1", InstructorID: "prof"})
		require.NoError(t, err)
		_, err = rooms.CreateRoom(proctor.Room{ID: "r1"})
		assert.Equal(t, proctor.ErrRoomExists, err)
		_, err = rooms.GetRoom("r2")
		assert.Equal(t, proctor.ErrRoomNotFound, err)
		assert.Equal(t, proctor.ErrRoomNotFound, rooms.DeleteRoom("r2"))
	})

	t.Run("sessions", func(t *testing.T) {
		s1 := testutil.NewSession("s1", "r1")
		_, err := sessions.CreateSession(s1)
		require.NoError(t, err)
		_, err = sessions.CreateSession(testutil.NewSession("s2", "r1"))
		require.NoError(t, err)
		_, err = sessions.CreateSession(testutil.NewSession("s1", "r9"))
		require.NoError(t, err, "the same student may sit another room")

		_, err = sessions.CreateSession(s1)
		assert.Equal(t, proctor.ErrSessionExists, err)

		hb := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
		require.NoError(t, sessions.SetSessionField(s1.Key(), proctor.FieldLastHeartbeat, hb))
		require.NoError(t, sessions.SetSessionField(s1.Key(), proctor.FieldCameraStatus, proctor.CameraObstructed))

		got, err := sessions.GetSession(s1.Key())
		require.NoError(t, err)
		assert.Equal(t, hb, got.LastHeartbeat)
		assert.Equal(t, proctor.CameraObstructed, got.CameraStatus)

		ghost := proctor.SessionKey{StudentID: "ghost", RoomID: "r1"}
		assert.Equal(t, proctor.ErrSessionNotFound, sessions.SetSessionField(ghost, proctor.FieldLastHeartbeat, hb))
		_, err = sessions.UpdateSession(ghost, func(*proctor.StudentSession) error { return nil })
		assert.Equal(t, proctor.ErrSessionNotFound, err)

		assert.Error(t, sessions.SetSessionField(s1.Key(), "strike_count", 99), "strikes are not a settable field")
		assert.Error(t, sessions.SetSessionField(s1.Key(), proctor.FieldLastHeartbeat, "noon"))

		inRoom, err := sessions.QuerySessions("r1")
		require.NoError(t, err)
		assert.Len(t, inRoom, 2)
	})

	t.Run("incidents", func(t *testing.T) {
		ev, err := incidents.CreateIncident(testutil.NewEvent("s1", "r1", proctor.CategoryGazeDeviation))
		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		_, err = incidents.CreateIncident(testutil.NewEvent("s1", "r9", proctor.CategoryGazeDeviation))
		require.NoError(t, err)

		require.NoError(t, incidents.SetEvidenceRef(ev.ID, "s1_100000.jpg"))
		assert.Error(t, incidents.SetEvidenceRef("nope", "x.jpg"))

		evs, err := incidents.QueryIncidents("r1")
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, "s1_100000.jpg", evs[0].EvidenceRef)
	})

	t.Run("purge room", func(t *testing.T) {
		removed, err := incidents.DeleteIncidents("r1")
		require.NoError(t, err)
		assert.Len(t, removed, 1)

		gone, err := sessions.DeleteSessions("r1")
		require.NoError(t, err)
		assert.Len(t, gone, 2)
		require.NoError(t, rooms.DeleteRoom("r1"))

		assert.Equal(t, map[string]int{RoomsTable: 0, SessionsTable: 1, IncidentsTable: 1}, db.Store().Stats())
	})

	t.Run("reset", func(t *testing.T) {
		db.Reset()
		for _, n := range db.Store().Stats() {
			assert.Zero(t, n)
		}
		fields, err := db.Store().Fields(SessionsTable)
		require.NoError(t, err)
		assert.Equal(t, []string{proctor.FieldCameraStatus, proctor.FieldDisplayName, proctor.FieldLastHeartbeat}, fields)
	})
}
