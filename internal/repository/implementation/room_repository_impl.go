package implementation

import (
	"context"
	"errors"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepositoryImpl struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) contract.IRoomRepository {
	return &RoomRepositoryImpl{db: db}
}

func (r *RoomRepositoryImpl) Upsert(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"persona_id", "voice_config"}),
		}).
		Create(room).Error
}

func (r *RoomRepositoryImpl) FindByRoomID(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepositoryImpl) FindAll(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
