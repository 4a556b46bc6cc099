package inmemdb

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/storage/rowstore"
)

// Table names.
const (
	RoomsTable     = "rooms"
	SessionsTable  = "students"
	IncidentsTable = "incidents"
)

type DB struct {
	store     *rowstore.Store
	rooms     *rowstore.Table[string, proctor.Room]
	sessions  *rowstore.Table[proctor.SessionKey, proctor.StudentSession]
	incidents *rowstore.Table[string, proctor.ViolationEvent]
}

func Open() (*DB, error) {
	store := rowstore.NewStore()

	rooms, err := rowstore.Register(store, rowstore.NewTable(
		RoomsTable,
		func(r proctor.Room) string { return r.ID },
		rowstore.Schema[proctor.Room]{
			"instructor_email": rowstore.Field(func(r *proctor.Room, v string) { r.InstructorEmail = v }),
			"subject":          rowstore.Field(func(r *proctor.Room, v string) { r.Subject = v }),
		},
	))
	if err != nil {
		return nil, errors.Wrap(err, "registering rooms")
	}

	sessions, err := rowstore.Register(store, rowstore.NewTable(
		SessionsTable,
		proctor.StudentSession.Key,
		rowstore.Schema[proctor.StudentSession]{
			proctor.FieldCameraStatus: rowstore.Field(func(s *proctor.StudentSession, v proctor.CameraStatus) {
				s.CameraStatus = v
			}),
			proctor.FieldLastHeartbeat: rowstore.Field(func(s *proctor.StudentSession, v time.Time) {
				s.LastHeartbeat = v
			}),
			proctor.FieldDisplayName: rowstore.Field(func(s *proctor.StudentSession, v string) {
				s.DisplayName = v
			}),
		},
	))
	if err != nil {
		return nil, errors.Wrap(err, "registering sessions")
	}

	incidents, err := rowstore.Register(store, rowstore.NewTable(
		IncidentsTable,
		func(ev proctor.ViolationEvent) string { return ev.ID },
		rowstore.Schema[proctor.ViolationEvent]{
			proctor.FieldEvidenceRef: rowstore.Field(func(ev *proctor.ViolationEvent, v string) {
				ev.EvidenceRef = v
			}),
		},
	))
	if err != nil {
		return nil, errors.Wrap(err, "registering incidents")
	}

	return &DB{
		store:     store,
		rooms:     rooms,
		sessions:  sessions,
		incidents: incidents,
	}, nil
}

// Store exposes the underlying tables, e.g. for stats or purging.
func (db *DB) Store() *rowstore.Store { return db.store }

// Reset empties every table.
func (db *DB) Reset() {
	for _, name := range db.store.Tables() {
		_ = db.store.Purge(name)
	}
}
