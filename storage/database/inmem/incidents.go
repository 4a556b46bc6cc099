package inmemdb

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
)

type incidentRepository struct {
	db *DB
}

var _ exam.IncidentRepository = (*incidentRepository)(nil)

func NewIncidentRepository(db *DB) exam.IncidentRepository {
	return &incidentRepository{db: db}
}

func (repo *incidentRepository) CreateIncident(ev proctor.ViolationEvent) (proctor.ViolationEvent, error) {
	ev.ID = uuid.New().String()
	if err := repo.db.incidents.Insert(ev); err != nil {
		return proctor.ViolationEvent{}, errors.Wrap(err, "inserting incident")
	}
	return ev, nil
}

func (repo *incidentRepository) SetEvidenceRef(id, ref string) error {
	return repo.db.incidents.UpdateField(id, proctor.FieldEvidenceRef, ref)
}

func (repo *incidentRepository) QueryIncidents(roomID string) ([]proctor.ViolationEvent, error) {
	return repo.db.incidents.Filter(func(ev proctor.ViolationEvent) bool { return ev.RoomID == roomID }), nil
}

func (repo *incidentRepository) DeleteIncidents(roomID string) ([]proctor.ViolationEvent, error) {
	return repo.db.incidents.DeleteFunc(func(ev proctor.ViolationEvent) bool { return ev.RoomID == roomID }), nil
}
