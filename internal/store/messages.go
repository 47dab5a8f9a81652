package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"sportsreport-bot/internal/models"
)

// IsProcessed reports whether msgID was handled within ttl.
func (s *Store) IsProcessed(ctx context.Context, msgID string, ttl time.Duration) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ProcessedMessage{}).
		Where("message_id = ? AND created_at > ?", msgID, s.now().Add(-ttl)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records msgID as handled now.
func (s *Store) MarkProcessed(ctx context.Context, msgID, senderID string) error {
	pm := models.ProcessedMessage{MessageID: msgID, SenderID: senderID, CreatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sender_id", "created_at"}),
	}).Create(&pm).Error
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// PurgeProcessed drops dedup records older than ttl.
func (s *Store) PurgeProcessed(ctx context.Context, ttl time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at <= ?", s.now().Add(-ttl)).
		Delete(&models.ProcessedMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge processed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// LogMessage appends to the message log.
func (s *Store) LogMessage(ctx context.Context, m *models.Message) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

// Messages returns the latest messages exchanged with waID, oldest first.
func (s *Store) Messages(ctx context.Context, waID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("wa_id = ?", waID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
