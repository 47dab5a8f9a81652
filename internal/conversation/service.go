// Package conversation runs one inbound message through extraction, the
// dialogue manager, storage and reply composition.
//
// Messages from the same sender are handled one at a time; different senders
// proceed in parallel.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"sportsreport-bot/internal/composer"
	"sportsreport-bot/internal/dialogue"
	"sportsreport-bot/internal/intent"
	"sportsreport-bot/internal/metrics"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/store"
)

// ErrStorage wraps every storage failure surfaced by HandleMessage.
var ErrStorage = errors.New("storage failure")

type Inbound struct {
	SenderID   string
	Text       string
	ReceivedAt time.Time
	// MessageID is the provider id used to drop redeliveries. Empty disables
	// the check.
	MessageID string
}

type Outbound struct {
	RecipientID string
	Text        string
	// Duplicate is set when the message was already handled and no reply
	// should be sent.
	Duplicate bool
}

// Store is the persistence the service needs.
type Store interface {
	GetDraft(ctx context.Context, senderID string) (*models.Draft, error)
	SaveDraft(ctx context.Context, d *models.Draft) error
	FindSubscribers(ctx context.Context, senderID string) ([]models.Subscriber, error)
	CommitSubscriber(ctx context.Context, d *models.Draft, followUpNote string) (string, error)
	UpdateSubscriber(ctx context.Context, publicID string, mutate func(*models.Subscriber) error, d *models.Draft) (*models.Subscriber, error)
	IsProcessed(ctx context.Context, msgID string, ttl time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, msgID, senderID string) error
}

// Notifier receives state changes after they are stored.
type Notifier interface {
	NotifyDraft(d *models.Draft)
	NotifyCommitted(sub *models.Subscriber)
	NotifyUpdated(sub *models.Subscriber)
}

type Options struct {
	StoreTimeout  time.Duration
	DedupTTL      time.Duration
	CommitRetries uint
	CommitBackoff time.Duration

	// Optional collaborators.
	Decorator *composer.Decorator
	Notifier  Notifier
	Metrics   *metrics.Metrics
}

type Service struct {
	store     Store
	extractor intent.Extractor
	manager   *dialogue.Manager
	composer  *composer.Composer
	logger    *slog.Logger
	opts      Options
	locks     *keyedLock
	now       func() time.Time
}

func NewService(st Store, extractor intent.Extractor, manager *dialogue.Manager, comp *composer.Composer, logger *slog.Logger, opts Options) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		manager:   manager,
		composer:  comp,
		logger:    logger,
		opts:      opts,
		locks:     newKeyedLock(),
		now:       time.Now,
	}
}

// HandleMessage processes one inbound message and returns the reply. On a
// storage failure it returns an apology together with an error wrapping
// ErrStorage; nothing from the failed turn is persisted.
//
// The sender's lock covers loading, deciding and storing. The reply is
// composed after it is released, so a slow decorator never holds up the
// sender's next message.
func (s *Service) HandleMessage(ctx context.Context, in Inbound) (Outbound, error) {
	start := s.now()
	out := Outbound{RecipientID: in.SenderID}

	release, err := s.locks.acquire(ctx, in.SenderID)
	if err != nil {
		return out, fmt.Errorf("wait for sender %s: %w", in.SenderID, err)
	}
	var once sync.Once
	unlock := func() { once.Do(release) }
	defer unlock()

	dec, it, err := s.process(ctx, in, &out)
	unlock()
	if err != nil || out.Duplicate {
		return out, err
	}

	text := s.composer.Compose(dec.Action)
	text = s.opts.Decorator.Decorate(ctx, dec.Action, text)
	out.Text = text

	if m := s.opts.Metrics; m != nil {
		m.Effects.WithLabelValues(string(dec.Effect)).Inc()
		m.TurnDuration.Observe(s.now().Sub(start).Seconds())
	}
	s.logger.Info("message handled",
		"sender", in.SenderID,
		"intent", it.Kind(),
		"effect", dec.Effect,
		"phase", dec.Phase,
		"elapsed", s.now().Sub(start),
	)
	return out, nil
}

// process runs the locked part of a turn. Failures are already turned into an
// apology on out.
func (s *Service) process(ctx context.Context, in Inbound, out *Outbound) (dialogue.Decision, intent.Intent, error) {
	var dec dialogue.Decision

	if in.MessageID != "" && s.opts.DedupTTL > 0 {
		var seen bool
		err := s.withStore(ctx, func(ctx context.Context) (err error) {
			seen, err = s.store.IsProcessed(ctx, in.MessageID, s.opts.DedupTTL)
			return err
		})
		if err != nil {
			return dec, nil, s.fail(out, "dedup", err)
		}
		if seen {
			s.logger.Info("skipping redelivered message", "sender", in.SenderID, "message_id", in.MessageID)
			if m := s.opts.Metrics; m != nil {
				m.Duplicates.Inc()
			}
			out.Duplicate = true
			return dec, nil, nil
		}
	}

	draft, subs, err := s.load(ctx, in.SenderID)
	if err != nil {
		return dec, nil, s.fail(out, "load", err)
	}

	it := s.extract(ctx, in.Text, intent.SnapshotOf(draft, subs))

	now := in.ReceivedAt
	if now.IsZero() {
		now = s.now()
	}
	decide := func() dialogue.Decision {
		dec := s.manager.Decide(dialogue.Input{
			SenderID:    in.SenderID,
			Draft:       draft,
			Subscribers: subs,
			Intent:      it,
			Now:         now,
		})
		s.logger.Debug("dialogue decision",
			"sender", in.SenderID,
			"intent", it.Kind(),
			"action", dec.Action.Kind,
			"effect", dec.Effect,
			"phase", dec.Phase,
		)
		return dec
	}

	dec = decide()
	err = s.apply(ctx, &dec)
	if errors.Is(err, dialogue.ErrEditConflict) {
		// The record changed under the edit; decide again from what is stored.
		s.logger.Info("edit conflicts with stored subscriber, deciding again", "sender", in.SenderID, "error", err)
		if draft, subs, err = s.load(ctx, in.SenderID); err != nil {
			return dec, it, s.fail(out, "load", err)
		}
		dec = decide()
		err = s.apply(ctx, &dec)
	}
	if err != nil {
		return dec, it, s.fail(out, string(dec.Effect), err)
	}

	if in.MessageID != "" && s.opts.DedupTTL > 0 {
		err := s.withStore(ctx, func(ctx context.Context) error {
			return s.store.MarkProcessed(ctx, in.MessageID, in.SenderID)
		})
		if err != nil {
			s.logger.Warn("mark message processed", "message_id", in.MessageID, "error", err)
		}
	}
	return dec, it, nil
}

func (s *Service) load(ctx context.Context, senderID string) (draft *models.Draft, subs []models.Subscriber, err error) {
	err = s.withStore(ctx, func(ctx context.Context) (err error) {
		if draft, err = s.store.GetDraft(ctx, senderID); err != nil {
			return err
		}
		subs, err = s.store.FindSubscribers(ctx, senderID)
		return err
	})
	return draft, subs, err
}

func (s *Service) extract(ctx context.Context, text string, snap intent.Snapshot) intent.Intent {
	it, err := s.extractor.Extract(ctx, text, snap)
	if err != nil || it == nil {
		s.logger.Warn("intent extraction failed", "error", err)
		it = intent.Ambiguous{Reason: intent.ReasonExtractionFailed}
	}
	if m := s.opts.Metrics; m != nil {
		m.Intents.WithLabelValues(it.Kind()).Inc()
		if a, ok := it.(intent.Ambiguous); ok && a.Reason == intent.ReasonExtractionFailed {
			m.ExtractionFailures.Inc()
		}
	}
	return it
}

// apply runs the decision's storage effect. Commit and update are retried
// with exponential backoff; version conflicts and missing records are not.
func (s *Service) apply(ctx context.Context, dec *dialogue.Decision) error {
	switch dec.Effect {
	case dialogue.EffectNone:
		return nil

	case dialogue.EffectSaveDraft:
		if err := s.retry(ctx, func(ctx context.Context) error {
			return s.store.SaveDraft(ctx, dec.Draft)
		}); err != nil {
			return err
		}
		s.notifyDraft(dec.Draft)
		return nil

	case dialogue.EffectCommit:
		var id string
		if err := s.retry(ctx, func(ctx context.Context) (err error) {
			id, err = s.store.CommitSubscriber(ctx, dec.Draft, dec.FollowUpNote)
			return err
		}); err != nil {
			return err
		}
		dec.Action.SubscriberID = id
		if n := s.opts.Notifier; n != nil {
			n.NotifyCommitted(&models.Subscriber{
				PublicID:      id,
				SenderID:      dec.Draft.SenderID,
				Fields:        dec.Draft.Fields.Clone(),
				NeedsFollowUp: dec.FollowUpNote != "",
				FollowUpNote:  dec.FollowUpNote,
				Active:        true,
			})
		}
		s.notifyDraft(dec.Draft)
		return nil

	case dialogue.EffectUpdate:
		var sub *models.Subscriber
		if err := s.retry(ctx, func(ctx context.Context) (err error) {
			sub, err = s.store.UpdateSubscriber(ctx, dec.Target, func(sub *models.Subscriber) error {
				return s.manager.ApplyEdit(sub, dec.Edit)
			}, dec.Draft)
			return err
		}); err != nil {
			return err
		}
		dec.Action.Fields = sub.Fields.Clone()
		dec.Action.FollowUp = sub.NeedsFollowUp
		if n := s.opts.Notifier; n != nil {
			n.NotifyUpdated(sub)
		}
		if dec.Draft != nil {
			s.notifyDraft(dec.Draft)
		}
		return nil
	}
	return fmt.Errorf("unknown effect %q", dec.Effect)
}

func (s *Service) retry(ctx context.Context, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if s.opts.CommitBackoff > 0 {
		b.InitialInterval = s.opts.CommitBackoff
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.withStore(ctx, op)
		if errors.Is(err, store.ErrStaleDraft) || errors.Is(err, store.ErrNotFound) || errors.Is(err, dialogue.ErrEditConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.opts.CommitRetries+1))
	return err
}

// withStore runs op under the store timeout.
func (s *Service) withStore(ctx context.Context, op func(context.Context) error) error {
	if s.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StoreTimeout)
		defer cancel()
	}
	return op(ctx)
}

func (s *Service) notifyDraft(d *models.Draft) {
	if n := s.opts.Notifier; n != nil && d != nil {
		n.NotifyDraft(d)
	}
}

func (s *Service) fail(out *Outbound, op string, err error) error {
	s.logger.Error("storage failure", "sender", out.RecipientID, "op", op, "error", err)
	if m := s.opts.Metrics; m != nil {
		m.StorageFailures.WithLabelValues(op).Inc()
	}
	out.Text = s.composer.Compose(dialogue.Action{Kind: dialogue.ActionApology})
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
