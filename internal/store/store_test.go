package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"sportsreport-bot/internal/database"
	"sportsreport-bot/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), "silent")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return New(db)
}

func sofiaDraft() *models.Draft {
	d := models.NewDraft("15550001111")
	d.ChildName = "Sofia"
	d.FavoriteTeams = models.TeamSet{{League: "NBA", Team: "Boston Celtics"}}
	d.Phase = models.PhaseAwaitingEmail
	d.LastQuestion = models.FieldEmail
	return d
}

func TestDraftRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if d, err := s.GetDraft(ctx, "15550001111"); err != nil || d != nil {
		t.Fatalf("GetDraft on empty store = %v, %v", d, err)
	}

	d := sofiaDraft()
	if err := s.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if d.ID == 0 || d.Version != 1 {
		t.Fatalf("after insert id=%d version=%d", d.ID, d.Version)
	}

	got, err := s.GetDraft(ctx, "15550001111")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if !got.Fields.Equal(d.Fields) || got.Phase != models.PhaseAwaitingEmail || got.Version != 1 {
		t.Fatalf("loaded %+v", got)
	}

	got.Email = "maria@gmail.com"
	got.Phase = models.PhaseComplete
	if err := s.SaveDraft(ctx, got); err != nil {
		t.Fatalf("SaveDraft update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version=%d want 2", got.Version)
	}
}

func TestSaveDraftRejectsStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sofiaDraft()
	if err := s.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	a, _ := s.GetDraft(ctx, d.SenderID)
	b, _ := s.GetDraft(ctx, d.SenderID)

	a.Email = "a@example.com"
	if err := s.SaveDraft(ctx, a); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	b.Email = "b@example.com"
	if err := s.SaveDraft(ctx, b); !errors.Is(err, ErrStaleDraft) {
		t.Fatalf("second writer err=%v want ErrStaleDraft", err)
	}
	if b.Version != 1 {
		t.Fatal("failed save must not touch the caller's draft")
	}

	got, _ := s.GetDraft(ctx, d.SenderID)
	if got.Email != "a@example.com" {
		t.Fatalf("email=%q", got.Email)
	}

	dup := sofiaDraft()
	if err := s.SaveDraft(ctx, dup); !errors.Is(err, ErrStaleDraft) {
		t.Fatalf("second insert err=%v want ErrStaleDraft", err)
	}
}

func TestCommitSubscriber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sofiaDraft()
	if err := s.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	d.Email = "maria@gmail.com"
	d.Phase = models.PhaseComplete

	id, err := s.CommitSubscriber(ctx, d, "")
	if err != nil {
		t.Fatalf("CommitSubscriber: %v", err)
	}
	if id == "" || d.SubscriberID != id || d.Version != 2 {
		t.Fatalf("id=%q draft=%+v", id, d)
	}

	sub, err := s.GetSubscriber(ctx, id)
	if err != nil {
		t.Fatalf("GetSubscriber: %v", err)
	}
	if sub.ChildName != "Sofia" || sub.Email != "maria@gmail.com" || !sub.Active || sub.NeedsFollowUp {
		t.Fatalf("subscriber=%+v", sub)
	}
	if !sub.FavoriteTeams.Equal(d.FavoriteTeams) {
		t.Fatalf("teams=%v", sub.FavoriteTeams)
	}

	subs, err := s.FindSubscribers(ctx, d.SenderID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("FindSubscribers=%v, %v", subs, err)
	}
}

func TestCommitIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sofiaDraft()
	if err := s.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	stale := *d
	d.Email = "maria@gmail.com"
	if err := s.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	stale.Email = "maria@gmail.com"
	stale.Phase = models.PhaseComplete
	if _, err := s.CommitSubscriber(ctx, &stale, ""); !errors.Is(err, ErrStaleDraft) {
		t.Fatalf("err=%v want ErrStaleDraft", err)
	}
	subs, _ := s.FindSubscribers(ctx, d.SenderID)
	if len(subs) != 0 {
		t.Fatal("subscriber created although the draft write failed")
	}
}

func TestUpdateSubscriber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sofiaDraft()
	d.Email = "maria@gmail.com"
	d.Phase = models.PhaseComplete
	id, err := s.CommitSubscriber(ctx, d, "")
	if err != nil {
		t.Fatalf("CommitSubscriber: %v", err)
	}

	arsenal := models.TeamPick{League: "EPL", Team: "Arsenal"}
	note := "unsupported league requested: Boston Bruins (NHL)"
	d.FavoriteTeams = d.FavoriteTeams.Add(arsenal)
	d.Pending = models.Edit{AddTeams: models.TeamSet{arsenal}}
	sub, err := s.UpdateSubscriber(ctx, id, func(sub *models.Subscriber) error {
		d.Pending.Apply(&sub.Fields)
		sub.FollowUpNote = note
		sub.NeedsFollowUp = true
		return nil
	}, d)
	if err != nil {
		t.Fatalf("UpdateSubscriber: %v", err)
	}
	if !sub.FavoriteTeams.Equal(d.FavoriteTeams) || !sub.NeedsFollowUp {
		t.Fatalf("subscriber=%+v", sub)
	}
	if got, _ := s.GetDraft(ctx, d.SenderID); !got.Pending.AddTeams.Equal(models.TeamSet{arsenal}) {
		t.Fatalf("pending edit not stored: %+v", got.Pending)
	}
	if d.Version != 2 {
		t.Fatalf("draft version=%d want 2", d.Version)
	}

	flagged, err := s.ListFollowUps(ctx, 10)
	if err != nil || len(flagged) != 1 || flagged[0].PublicID != id {
		t.Fatalf("ListFollowUps=%v, %v", flagged, err)
	}

	noop := func(*models.Subscriber) error { return nil }
	if _, err := s.UpdateSubscriber(ctx, "missing", noop, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if _, err := s.GetSubscriber(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestUpdateSubscriberMutateErrorRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sofiaDraft()
	d.Email = "maria@gmail.com"
	d.Phase = models.PhaseComplete
	id, err := s.CommitSubscriber(ctx, d, "")
	if err != nil {
		t.Fatalf("CommitSubscriber: %v", err)
	}

	refused := errors.New("refused")
	_, err = s.UpdateSubscriber(ctx, id, func(sub *models.Subscriber) error {
		sub.Email = "other@example.com"
		return refused
	}, d)
	if !errors.Is(err, refused) {
		t.Fatalf("err=%v want the mutate error", err)
	}
	sub, _ := s.GetSubscriber(ctx, id)
	if sub.Email != "maria@gmail.com" {
		t.Fatalf("email=%q after a refused update", sub.Email)
	}
	if got, _ := s.GetDraft(ctx, d.SenderID); got.Version != d.Version {
		t.Fatalf("draft version=%d want %d", got.Version, d.Version)
	}
}

func TestProcessedMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if seen, err := s.IsProcessed(ctx, "wamid.1", 2*time.Minute); err != nil || seen {
		t.Fatalf("IsProcessed before mark = %v, %v", seen, err)
	}
	if err := s.MarkProcessed(ctx, "wamid.1", "15550001111"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := s.MarkProcessed(ctx, "wamid.1", "15550001111"); err != nil {
		t.Fatalf("MarkProcessed twice: %v", err)
	}
	if seen, _ := s.IsProcessed(ctx, "wamid.1", 2*time.Minute); !seen {
		t.Fatal("message should be processed")
	}

	now = now.Add(3 * time.Minute)
	if seen, _ := s.IsProcessed(ctx, "wamid.1", 2*time.Minute); seen {
		t.Fatal("dedup entry should have expired")
	}
	if n, err := s.PurgeProcessed(ctx, 2*time.Minute); err != nil || n != 1 {
		t.Fatalf("PurgeProcessed=%d, %v", n, err)
	}
}

func TestMessageLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"hi", "hello!", "bye"} {
		if err := s.LogMessage(ctx, &models.Message{WaID: "15550001111", Sender: "user", Content: text, Type: "text", Status: "received"}); err != nil {
			t.Fatalf("LogMessage: %v", err)
		}
	}
	msgs, err := s.Messages(ctx, "15550001111", 2)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hello!" || msgs[1].Content != "bye" {
		t.Fatalf("messages=%+v", msgs)
	}
}
