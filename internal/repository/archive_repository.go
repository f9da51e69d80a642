package repository

import (
	"sales-voice-go/internal/model"

	"gorm.io/gorm"
)

// ArchiveRepository 将问答归档到 MySQL，用于会话过期后的审计查询。
type ArchiveRepository interface {
	Save(record *model.Conversation) error
	ListBySession(sessionID string) ([]model.Conversation, error)
}

type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建一个新的 ArchiveRepository 实例。
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

func (r *archiveRepository) Save(record *model.Conversation) error {
	return r.db.Create(record).Error
}

func (r *archiveRepository) ListBySession(sessionID string) ([]model.Conversation, error) {
	var records []model.Conversation
	err := r.db.Where("session_id = ?", sessionID).Order("id asc").Find(&records).Error
	return records, err
}
