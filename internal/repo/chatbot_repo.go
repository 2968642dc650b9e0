// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file maps chatbot content ids to creator addresses.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// GetChatbotOwner returns the owner row for contentID or ErrNotFound.
func GetChatbotOwner(ctx context.Context, db *gorm.DB, contentID uint64) (*domain.ChatbotOwner, error) {
	var row domain.ChatbotOwner
	err := db.WithContext(ctx).Where("content_id = ?", contentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertChatbotOwner overwrites the owner of contentID. No history is kept.
func UpsertChatbotOwner(ctx context.Context, db *gorm.DB, contentID uint64, owner string) error {
	row := domain.ChatbotOwner{ContentID: contentID, Owner: owner, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "updated_at"}),
		}).
		Create(&row).Error
}
