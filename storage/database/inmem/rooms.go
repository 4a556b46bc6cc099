package inmemdb

import (
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/storage/rowstore"
)

type roomRepository struct {
	db *DB
}

var _ exam.RoomRepository = (*roomRepository)(nil) // interface compliance check

func NewRoomRepository(db *DB) exam.RoomRepository {
	return &roomRepository{db: db}
}

func (repo *roomRepository) CreateRoom(room proctor.Room) (proctor.Room, error) {
	if err := repo.db.rooms.Insert(room); err != nil {
		if errors.Cause(err) == rowstore.ErrDuplicateKey {
			return proctor.Room{}, proctor.ErrRoomExists
		}
		return proctor.Room{}, errors.Wrap(err, "inserting room")
	}
	return room, nil
}

func (repo *roomRepository) GetRoom(id string) (proctor.Room, error) {
	room, err := repo.db.rooms.Get(id)
	if err != nil {
		if errors.Cause(err) == rowstore.ErrKeyNotFound {
			return proctor.Room{}, proctor.ErrRoomNotFound
		}
		return proctor.Room{}, errors.Wrap(err, "getting room")
	}
	return room, nil
}

func (repo *roomRepository) QueryRooms() ([]proctor.Room, error) {
	return repo.db.rooms.GetAll(), nil
}

func (repo *roomRepository) DeleteRoom(id string) error {
	removed := repo.db.rooms.DeleteFunc(func(r proctor.Room) bool { return r.ID == id })
	if len(removed) == 0 {
		return proctor.ErrRoomNotFound
	}
	return nil
}
