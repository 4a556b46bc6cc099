package exam

import (
	"context"

	"github.com/trezcool/proctor/core/proctor"
)

type (
	RoomRepository interface {
		CreateRoom(room proctor.Room) (proctor.Room, error)
		GetRoom(id string) (proctor.Room, error)
		QueryRooms() ([]proctor.Room, error)
		DeleteRoom(id string) error
	}

	SessionRepository interface {
		// CreateSession fails with proctor.ErrSessionExists if the student already entered the room.
		CreateSession(sess proctor.StudentSession) (proctor.StudentSession, error)
		GetSession(key proctor.SessionKey) (proctor.StudentSession, error)
		// UpdateSession runs fn and stores its result atomically with respect to other updates of key.
		UpdateSession(key proctor.SessionKey, fn func(*proctor.StudentSession) error) (proctor.StudentSession, error)
		SetSessionField(key proctor.SessionKey, field string, value interface{}) error
		QuerySessions(roomID string) ([]proctor.StudentSession, error)
		DeleteSessions(roomID string) ([]proctor.StudentSession, error)
	}

	IncidentRepository interface {
		// CreateIncident assigns the incident ID.
		CreateIncident(ev proctor.ViolationEvent) (proctor.ViolationEvent, error)
		SetEvidenceRef(id, ref string) error
		QueryIncidents(roomID string) ([]proctor.ViolationEvent, error)
		DeleteIncidents(roomID string) ([]proctor.ViolationEvent, error)
	}

	// ArchiveRepository durably records finalized rooms.
	ArchiveRepository interface {
		SaveArchive(ctx context.Context, archive proctor.Archive) error
	}
)
