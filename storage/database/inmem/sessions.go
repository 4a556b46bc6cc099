package inmemdb

import (
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/storage/rowstore"
)

type sessionRepository struct {
	db *DB
}

var _ exam.SessionRepository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) exam.SessionRepository {
	return &sessionRepository{db: db}
}

func notFound(err error) error {
	if errors.Cause(err) == rowstore.ErrKeyNotFound {
		return proctor.ErrSessionNotFound
	}
	return err
}

func (repo *sessionRepository) CreateSession(sess proctor.StudentSession) (proctor.StudentSession, error) {
	if err := repo.db.sessions.Insert(sess); err != nil {
		if errors.Cause(err) == rowstore.ErrDuplicateKey {
			return proctor.StudentSession{}, proctor.ErrSessionExists
		}
		return proctor.StudentSession{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(key proctor.SessionKey) (proctor.StudentSession, error) {
	sess, err := repo.db.sessions.Get(key)
	return sess, notFound(err)
}

func (repo *sessionRepository) UpdateSession(
	key proctor.SessionKey,
	fn func(*proctor.StudentSession) error,
) (proctor.StudentSession, error) {
	sess, err := repo.db.sessions.Update(key, fn)
	return sess, notFound(err)
}

func (repo *sessionRepository) SetSessionField(key proctor.SessionKey, field string, value interface{}) error {
	return notFound(repo.db.sessions.UpdateField(key, field, value))
}

func (repo *sessionRepository) QuerySessions(roomID string) ([]proctor.StudentSession, error) {
	return repo.db.sessions.Filter(func(s proctor.StudentSession) bool { return s.RoomID == roomID }), nil
}

func (repo *sessionRepository) DeleteSessions(roomID string) ([]proctor.StudentSession, error) {
	return repo.db.sessions.DeleteFunc(func(s proctor.StudentSession) bool { return s.RoomID == roomID }), nil
}
