package services

import (
	"github.com/Cramiac/SyncTunes/internal/models"

	"gorm.io/gorm"
)

// Archiver receives the trace of a room when it is torn down. The
// coordinator only depends on this interface so the engine runs (and tests)
// without a database.
type Archiver interface {
	ArchiveRoom(rec models.RoomRecord) error
	ListRecent(limit int) ([]models.RoomRecord, error)
}

type ArchiveService struct {
	db *gorm.DB
}

func NewArchiveService(db *gorm.DB) *ArchiveService {
	return &ArchiveService{db: db}
}

func (s *ArchiveService) ArchiveRoom(rec models.RoomRecord) error {
	return s.db.Create(&rec).Error
}

func (s *ArchiveService) ListRecent(limit int) ([]models.RoomRecord, error) {
	var records []models.RoomRecord
	if err := s.db.Order("closed_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
