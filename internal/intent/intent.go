// Package intent turns a free-form chat message into a structured intent.
//
// Extractors only classify text. Everything they return is untrusted and is
// canonicalised and validated again by the dialogue layer before it touches
// storage.
package intent

import (
	"context"

	"sportsreport-bot/internal/models"
)

// Intent is one of NewSignup, EditRequest, FieldAnswer, Ambiguous or Unrelated.
type Intent interface {
	Kind() string
	isIntent()
}

// NewSignup asks to register a child. Any field may be empty.
type NewSignup struct {
	ChildName    string
	Relationship string
	Email        string
	Teams        models.TeamSet
}

// Op is how an edit changes a field.
type Op string

const (
	OpSet    Op = "set"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Change is a single field edit. Value carries scalar fields, Teams carries
// favorite_teams for every op.
type Change struct {
	Field models.Field
	Op    Op
	Value string
	Teams models.TeamSet
}

// EditRequest changes an existing subscriber. TargetChild may be empty when
// the sender has a single child or an edit is already in progress.
type EditRequest struct {
	TargetChild string
	Changes     []Change
}

// FieldAnswer answers the question the bot asked last.
type FieldAnswer struct {
	Field models.Field
	Value string
	Teams models.TeamSet
}

// Ambiguous means the message could not be understood well enough to act on.
type Ambiguous struct {
	Reason string
}

// Unrelated is small talk or anything outside signups and edits.
type Unrelated struct{}

const (
	ReasonExtractionFailed = "extraction_failed"
	ReasonEmpty            = "empty_message"
	ReasonUnrecognized     = "unrecognized"
)

func (NewSignup) Kind() string   { return "new_signup" }
func (EditRequest) Kind() string { return "edit_request" }
func (FieldAnswer) Kind() string { return "field_answer" }
func (Ambiguous) Kind() string   { return "ambiguous" }
func (Unrelated) Kind() string   { return "unrelated" }

func (NewSignup) isIntent()   {}
func (EditRequest) isIntent() {}
func (FieldAnswer) isIntent() {}
func (Ambiguous) isIntent()   {}
func (Unrelated) isIntent()   {}

// Snapshot is the conversation context an extractor may use.
type Snapshot struct {
	Phase         models.Phase   `json:"phase,omitempty"`
	ChildName     string         `json:"child_name,omitempty"`
	Email         string         `json:"email,omitempty"`
	Teams         models.TeamSet `json:"teams,omitempty"`
	PendingLeague string         `json:"pending_league,omitempty"`
	LastQuestion  models.Field   `json:"last_question,omitempty"`
	EditTarget    string         `json:"edit_target,omitempty"`
	KnownChildren []string       `json:"known_children,omitempty"`
}

// SnapshotOf builds the extractor context for a draft and the sender's
// existing subscribers. A nil draft means no conversation is in progress.
func SnapshotOf(d *models.Draft, subscribers []models.Subscriber) Snapshot {
	var s Snapshot
	for _, sub := range subscribers {
		s.KnownChildren = append(s.KnownChildren, sub.ChildName)
	}
	if d == nil {
		return s
	}
	s.Phase = d.Phase
	s.ChildName = d.ChildName
	s.Email = d.Email
	s.Teams = d.FavoriteTeams.Clone()
	s.LastQuestion = d.LastQuestion
	s.EditTarget = d.EditTarget
	if p, ok := d.FavoriteTeams.FirstPlaceholder(); ok {
		s.PendingLeague = p.League
	}
	return s
}

// Extractor classifies one inbound message.
type Extractor interface {
	Extract(ctx context.Context, text string, snap Snapshot) (Intent, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, text string, snap Snapshot) (Intent, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	return f(ctx, text, snap)
}
