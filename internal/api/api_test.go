package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"

	"sportsreport-bot/internal/database"
	"sportsreport-bot/internal/logging"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
	"sportsreport-bot/internal/store"
	"sportsreport-bot/internal/validator"
)

func newStore(t *testing.T) *store.Store {
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
	return store.New(db)
}

type updates struct{ subs []*models.Subscriber }

func (u *updates) NotifyUpdated(sub *models.Subscriber) { u.subs = append(u.subs, sub) }

type sentTexts struct {
	to  []string
	err error
}

func (s *sentTexts) SendText(ctx context.Context, to, body string) (string, error) {
	s.to = append(s.to, to)
	return "", s.err
}

type fixture struct {
	router  *gin.Engine
	store   *store.Store
	updates *updates
	sender  *sentTexts
	id      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := newStore(t)

	d := models.NewDraft("15550001111")
	d.ChildName = "Sofia"
	d.Email = "maria@gmail.com"
	d.FavoriteTeams = models.TeamSet{{League: "NBA", Team: "Boston Celtics"}}
	d.Phase = models.PhaseComplete
	id, err := st.CommitSubscriber(context.Background(), d, "")
	if err != nil {
		t.Fatalf("CommitSubscriber: %v", err)
	}

	catalog := sports.Default()
	f := &fixture{store: st, updates: &updates{}, sender: &sentTexts{}, id: id}
	subs := NewSubscriberHandler(st, catalog, validator.New(catalog), f.updates, logging.Discard())
	dash := NewDashboardHandler(st, f.sender, func(context.Context) error { return nil }, logging.Discard())

	r := gin.New()
	r.GET("/health", dash.Health)
	g := r.Group("/api")
	g.GET("/subscribers/:id", subs.GetSubscriber)
	g.PATCH("/subscribers/:id", subs.PatchSubscriber)
	g.GET("/followups", subs.ListFollowUps)
	g.GET("/messages", dash.GetMessages)
	g.POST("/send", dash.SendMessage)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeSubscriber(t *testing.T, rec *httptest.ResponseRecorder) models.Subscriber {
	t.Helper()
	var sub models.Subscriber
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return sub
}

func TestGetSubscriber(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/subscribers/"+f.id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if sub := decodeSubscriber(t, rec); sub.PublicID != f.id || sub.ChildName != "Sofia" {
		t.Fatalf("subscriber=%+v", sub)
	}

	if rec := f.do(http.MethodGet, "/api/subscribers/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestPatchSubscriber(t *testing.T) {
	tests := []struct {
		name   string
		patch  string
		status int
		check  func(t *testing.T, sub models.Subscriber)
	}{
		{
			name:   "replace teams with canonical names",
			patch:  `{"favorite_teams":[{"league":"nba","team":"celtics"},{"league":"NBA","team":"lakers"}]}`,
			status: http.StatusOK,
			check: func(t *testing.T, sub models.Subscriber) {
				want := models.TeamSet{{League: "NBA", Team: "Boston Celtics"}, {League: "NBA", Team: "Los Angeles Lakers"}}
				if !sub.FavoriteTeams.Equal(want) {
					t.Errorf("teams=%v want %v", sub.FavoriteTeams, want)
				}
				if sub.Email != "maria@gmail.com" {
					t.Errorf("untouched email changed: %q", sub.Email)
				}
			},
		},
		{
			name:   "email is lowercased",
			patch:  `{"email":" Maria.Lopez@Gmail.com "}`,
			status: http.StatusOK,
			check: func(t *testing.T, sub models.Subscriber) {
				if sub.Email != "maria.lopez@gmail.com" {
					t.Errorf("email=%q", sub.Email)
				}
			},
		},
		{
			name:   "unknown league flags follow-up",
			patch:  `{"favorite_teams":[{"league":"NHL","team":"Bruins"}]}`,
			status: http.StatusOK,
			check: func(t *testing.T, sub models.Subscriber) {
				if !sub.NeedsFollowUp || !strings.Contains(sub.FollowUpNote, "NHL") {
					t.Errorf("follow-up=%v %q", sub.NeedsFollowUp, sub.FollowUpNote)
				}
			},
		},
		{name: "malformed email", patch: `{"email":"maria@"}`, status: http.StatusUnprocessableEntity},
		{name: "removing the email", patch: `{"email":null}`, status: http.StatusUnprocessableEntity},
		{name: "empty team list", patch: `{"favorite_teams":[]}`, status: http.StatusUnprocessableEntity},
		{name: "not json", patch: `{email`, status: http.StatusBadRequest},
		{name: "wrong shape", patch: `{"favorite_teams":"Celtics"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(http.MethodPatch, "/api/subscribers/"+f.id, tt.patch)
			if rec.Code != tt.status {
				t.Fatalf("status=%d want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			stored, err := f.store.GetSubscriber(context.Background(), f.id)
			if err != nil {
				t.Fatalf("GetSubscriber: %v", err)
			}
			if tt.check == nil {
				if stored.Email != "maria@gmail.com" || len(stored.FavoriteTeams) != 1 {
					t.Fatalf("rejected patch changed the record: %+v", stored)
				}
				return
			}
			tt.check(t, decodeSubscriber(t, rec))
			tt.check(t, *stored)
			if len(f.updates.subs) != 1 {
				t.Fatalf("update events=%d", len(f.updates.subs))
			}
		})
	}
}

// racingStore stores a chat edit right before each update transaction starts.
type racingStore struct {
	*store.Store
	edit func(*models.Subscriber) error
}

func (r *racingStore) UpdateSubscriber(ctx context.Context, id string, mutate func(*models.Subscriber) error, d *models.Draft) (*models.Subscriber, error) {
	if _, err := r.Store.UpdateSubscriber(ctx, id, r.edit, nil); err != nil {
		return nil, err
	}
	return r.Store.UpdateSubscriber(ctx, id, mutate, d)
}

func TestPatchKeepsChatEditStoredMeanwhile(t *testing.T) {
	f := newFixture(t)
	heat := models.TeamPick{League: "NBA", Team: "Miami Heat"}
	catalog := sports.Default()
	racing := &racingStore{Store: f.store, edit: func(sub *models.Subscriber) error {
		sub.FavoriteTeams = sub.FavoriteTeams.Add(heat)
		return nil
	}}
	h := NewSubscriberHandler(racing, catalog, validator.New(catalog), f.updates, logging.Discard())
	r := gin.New()
	r.PATCH("/api/subscribers/:id", h.PatchSubscriber)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/subscribers/"+f.id, strings.NewReader(`{"email":"new@example.com"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rec.Code, rec.Body.String())
	}

	stored, err := f.store.GetSubscriber(context.Background(), f.id)
	if err != nil {
		t.Fatalf("GetSubscriber: %v", err)
	}
	if stored.Email != "new@example.com" {
		t.Fatalf("email=%q", stored.Email)
	}
	if !stored.FavoriteTeams.Contains(heat) {
		t.Fatalf("chat edit lost: teams=%v", stored.FavoriteTeams)
	}
}

func TestPatchWithoutChangeSendsNoEvent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPatch, "/api/subscribers/"+f.id, `{"email":"maria@gmail.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if len(f.updates.subs) != 0 {
		t.Fatalf("update events=%d want 0", len(f.updates.subs))
	}
}

func TestSubscriberJSONHidesPhoneNumber(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/subscribers/"+f.id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "15550001111") {
		t.Fatalf("response exposes the sender number: %s", rec.Body.String())
	}
}

func TestPatchUnknownSubscriber(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPatch, "/api/subscribers/nope", `{"email":"a@b.co"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestListFollowUps(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/followups", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	f.do(http.MethodPatch, "/api/subscribers/"+f.id, `{"favorite_teams":[{"league":"NHL","team":"Bruins"}]}`)
	rec = f.do(http.MethodGet, "/api/followups?limit=10", "")
	var subs []models.Subscriber
	if err := json.Unmarshal(rec.Body.Bytes(), &subs); err != nil || len(subs) != 1 || subs[0].PublicID != f.id {
		t.Fatalf("followups=%s err=%v", rec.Body.String(), err)
	}

	if rec := f.do(http.MethodGet, "/api/followups?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}

func TestSendAndListMessages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/send", `{"to":"15550001111","content":"Hi from the team!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/api/messages?wa_id=15550001111", "")
	var msgs []models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil || len(msgs) != 1 || msgs[0].Sender != "operator" {
		t.Fatalf("messages=%s err=%v", rec.Body.String(), err)
	}

	f.sender.err = errors.New("graph down")
	if rec := f.do(http.MethodPost, "/api/send", `{"to":"15550001111","content":"again"}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d want 502", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/send", `{"to":"15550001111"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}
