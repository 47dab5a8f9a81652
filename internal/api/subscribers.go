package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/gin-gonic/gin"

	"sportsreport-bot/internal/dialogue"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
	"sportsreport-bot/internal/store"
	"sportsreport-bot/internal/validator"
)

const maxPatchBytes = 16 << 10

type SubscriberStore interface {
	GetSubscriber(ctx context.Context, publicID string) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, publicID string, mutate func(*models.Subscriber) error, d *models.Draft) (*models.Subscriber, error)
	ListFollowUps(ctx context.Context, limit int) ([]models.Subscriber, error)
}

type UpdateNotifier interface {
	NotifyUpdated(sub *models.Subscriber)
}

// SubscriberHandler serves the self-service settings page behind the edit
// link sent in confirmations.
type SubscriberHandler struct {
	store     SubscriberStore
	catalog   *sports.Catalog
	validator *validator.Validator
	notifier  UpdateNotifier
	logger    *slog.Logger
}

func NewSubscriberHandler(st SubscriberStore, catalog *sports.Catalog, v *validator.Validator, notifier UpdateNotifier, logger *slog.Logger) *SubscriberHandler {
	return &SubscriberHandler{store: st, catalog: catalog, validator: v, notifier: notifier, logger: logger}
}

func (h *SubscriberHandler) GetSubscriber(c *gin.Context) {
	sub, err := h.store.GetSubscriber(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	if err != nil {
		h.logger.Error("get subscriber", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscriber"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// patchError is a client error found while applying a patch.
type patchError struct {
	status int
	body   gin.H
}

func (e *patchError) Error() string {
	return fmt.Sprint(e.body["error"])
}

// PatchSubscriber applies an RFC 7386 merge patch to the editable fields
// (child_name, relationship, email, favorite_teams) and validates the
// result the same way a chat edit is validated. The patch is merged into
// the record as read inside the update transaction, so a chat edit stored
// meanwhile is kept.
func (h *SubscriberHandler) PatchSubscriber(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	patch, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPatchBytes))
	if err != nil || len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty patch"})
		return
	}

	changed := false
	updated, err := h.store.UpdateSubscriber(ctx, id, func(sub *models.Subscriber) error {
		next, err := mergeFields(sub.Fields, patch)
		if err != nil {
			return &patchError{status: http.StatusBadRequest, body: gin.H{"error": err.Error()}}
		}
		next = h.normalize(next)

		verdict := h.validator.Validate(next)
		if verdict.Issue != nil {
			return &patchError{status: http.StatusUnprocessableEntity, body: gin.H{
				"error":  verdict.Issue.Error(),
				"field":  verdict.Issue.Field,
				"reason": verdict.Issue.Reason,
			}}
		}

		note := verdict.FollowUpNote()
		changed = !next.Equal(sub.Fields) || next.Email != sub.Email || note != sub.FollowUpNote
		sub.Fields = next
		sub.FollowUpNote = note
		sub.NeedsFollowUp = note != ""
		return nil
	}, nil)

	var pe *patchError
	switch {
	case errors.As(err, &pe):
		c.JSON(pe.status, pe.body)
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	case err != nil:
		h.logger.Error("update subscriber", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscriber"})
		return
	}

	if changed {
		h.logger.Info("subscriber updated from settings page", "id", id)
		if h.notifier != nil {
			h.notifier.NotifyUpdated(updated)
		}
	}
	c.JSON(http.StatusOK, updated)
}

// ListFollowUps returns subscribers who asked for leagues we do not cover.
func (h *SubscriberHandler) ListFollowUps(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	subs, err := h.store.ListFollowUps(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list follow-ups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list follow-ups"})
		return
	}
	if subs == nil {
		subs = []models.Subscriber{}
	}
	c.JSON(http.StatusOK, subs)
}

func mergeFields(current models.Fields, patch []byte) (models.Fields, error) {
	doc, err := sonic.Marshal(current)
	if err != nil {
		return models.Fields{}, err
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return models.Fields{}, errors.New("invalid merge patch")
	}
	var next models.Fields
	if err := sonic.Unmarshal(merged, &next); err != nil {
		return models.Fields{}, errors.New("patch does not match the subscriber shape")
	}
	return next, nil
}

func (h *SubscriberHandler) normalize(f models.Fields) models.Fields {
	f.ChildName = strings.TrimSpace(f.ChildName)
	f.Relationship = strings.TrimSpace(f.Relationship)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))

	var teams models.TeamSet
	for _, p := range f.FavoriteTeams {
		canon, _ := h.catalog.Canonical(models.TeamPick{League: strings.TrimSpace(p.League), Team: strings.TrimSpace(p.Team)})
		if canon.League == "" {
			if canon.Team == "" {
				continue
			}
			canon.League = dialogue.OtherLeague
		}
		teams = teams.Add(canon)
	}
	f.FavoriteTeams = teams
	return f
}
