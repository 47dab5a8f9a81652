// Package store persists drafts, subscribers and the message log with gorm.
//
// Every multi-row change runs in one transaction. Drafts carry a version and
// are written with compare-and-swap, so a draft saved from stale state fails
// with ErrStaleDraft instead of overwriting a newer one.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportsreport-bot/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrStaleDraft = errors.New("draft was changed by another request")
)

// draftColumns are written on every draft update.
var draftColumns = []string{
	"child_name", "relationship", "favorite_teams", "email",
	"phase", "edit_target", "subscriber_id", "last_question",
	"pending", "version", "updated_at",
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the handle for tools that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetDraft returns the sender's draft, or nil when there is none.
func (s *Store) GetDraft(ctx context.Context, senderID string) (*models.Draft, error) {
	var d models.Draft
	err := s.db.WithContext(ctx).Where("sender_id = ?", senderID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return &d, nil
}

// SaveDraft inserts a new draft or updates one whose stored version still
// matches d.Version. On success d.Version is incremented.
func (s *Store) SaveDraft(ctx context.Context, d *models.Draft) error {
	next := *d
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.saveDraft(tx, &next)
	})
	if err != nil {
		return err
	}
	*d = next
	return nil
}

func (s *Store) saveDraft(tx *gorm.DB, d *models.Draft) error {
	now := s.now()
	if d.ID == 0 {
		d.Version = 1
		d.CreatedAt = now
		d.UpdatedAt = now
		if err := tx.Create(d).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrStaleDraft
			}
			return fmt.Errorf("create draft: %w", err)
		}
		return nil
	}

	expected := d.Version
	d.Version = expected + 1
	d.UpdatedAt = now
	res := tx.Model(&models.Draft{ID: d.ID}).
		Select(draftColumns).
		Where("version = ?", expected).
		Updates(d)
	if res.Error != nil {
		return fmt.Errorf("update draft: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleDraft
	}
	return nil
}

// CommitSubscriber creates a subscriber from a complete draft and saves the
// draft pointing at it, atomically. It returns the new public id.
func (s *Store) CommitSubscriber(ctx context.Context, d *models.Draft, followUpNote string) (string, error) {
	next := *d
	next.Fields = d.Fields.Clone()
	sub := models.Subscriber{
		PublicID:      uuid.NewString(),
		SenderID:      d.SenderID,
		Fields:        d.Fields.Clone(),
		NeedsFollowUp: followUpNote != "",
		FollowUpNote:  followUpNote,
		Active:        true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("create subscriber: %w", err)
		}
		next.SubscriberID = sub.PublicID
		return s.saveDraft(tx, &next)
	})
	if err != nil {
		return "", err
	}
	*d = next
	return sub.PublicID, nil
}

// UpdateSubscriber loads the subscriber under a row lock, lets mutate change
// it and saves the result. When d is not nil the draft is saved in the same
// transaction. An error from mutate aborts the transaction and is returned
// unwrapped. A mutate that changes nothing skips the subscriber write.
func (s *Store) UpdateSubscriber(ctx context.Context, publicID string, mutate func(*models.Subscriber) error, d *models.Draft) (*models.Subscriber, error) {
	var sub models.Subscriber
	var next models.Draft
	if d != nil {
		next = *d
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockingClause(tx)...).Where("public_id = ?", publicID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load subscriber: %w", err)
		}
		before := sub
		before.Fields = sub.Fields.Clone()
		if err := mutate(&sub); err != nil {
			return err
		}
		if !sameRecord(before, sub) {
			sub.UpdatedAt = s.now()
			if err := tx.Save(&sub).Error; err != nil {
				return fmt.Errorf("save subscriber: %w", err)
			}
		}
		if d == nil {
			return nil
		}
		return s.saveDraft(tx, &next)
	})
	if err != nil {
		return nil, err
	}
	if d != nil {
		*d = next
	}
	return &sub, nil
}

func sameRecord(a, b models.Subscriber) bool {
	return a.ChildName == b.ChildName &&
		a.Relationship == b.Relationship &&
		a.Email == b.Email &&
		a.FavoriteTeams.Equal(b.FavoriteTeams) &&
		a.FollowUpNote == b.FollowUpNote &&
		a.NeedsFollowUp == b.NeedsFollowUp &&
		a.Active == b.Active
}

// lockingClause takes a row lock where the database supports one.
func lockingClause(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "postgres" {
		return []clause.Expression{clause.Locking{Strength: clause.LockingStrengthUpdate}}
	}
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, publicID string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return &sub, nil
}

// FindSubscribers returns the active subscribers registered from senderID.
func (s *Store) FindSubscribers(ctx context.Context, senderID string) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("sender_id = ? AND active = ?", senderID, true).
		Order("id").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	return subs, nil
}

// ListFollowUps returns subscribers flagged for manual follow-up, newest first.
func (s *Store) ListFollowUps(ctx context.Context, limit int) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("needs_follow_up = ?", true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	return subs, nil
}
