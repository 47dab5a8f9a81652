// Package dialogue decides what to do with one inbound message given the
// sender's draft and existing subscribers. Decide is pure: it returns the
// single storage effect to run and the reply to compose, and performs no I/O.
package dialogue

import (
	"time"

	"sportsreport-bot/internal/intent"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/validator"
)

// Effect is the one storage operation a decision asks for.
type Effect string

const (
	EffectNone      Effect = "none"
	EffectSaveDraft Effect = "save_draft"
	EffectCommit    Effect = "commit_subscriber"
	EffectUpdate    Effect = "update_subscriber"
)

// ActionKind selects the reply template.
type ActionKind string

const (
	ActionAskField          ActionKind = "ask_field"
	ActionConfirmSignup     ActionKind = "confirm_signup"
	ActionEditApplied       ActionKind = "edit_applied"
	ActionNoChange          ActionKind = "no_change"
	ActionInvalidEdit       ActionKind = "invalid_edit"
	ActionAskEditDetails    ActionKind = "ask_edit_details"
	ActionAskWhichChild     ActionKind = "ask_which_child"
	ActionUnknownChild      ActionKind = "unknown_child"
	ActionNoSubscription    ActionKind = "no_subscription"
	ActionAlreadySubscribed ActionKind = "already_subscribed"
	ActionAllSet            ActionKind = "all_set"
	ActionClarify           ActionKind = "clarify"
	ActionRedirect          ActionKind = "redirect"
	ActionApology           ActionKind = "apology"
)

// Action is everything the composer needs to phrase a reply.
type Action struct {
	Kind      ActionKind
	Field     models.Field
	Issue     *validator.Issue
	League    string
	ChildName string
	Fields    models.Fields
	// SubscriberID is the public id used in edit links. For commits it is
	// filled in after the store assigns it.
	SubscriberID string
	Children     []string
	FollowUp     bool
	Editing      bool
}

// Decision is the outcome of one message.
type Decision struct {
	Action Action
	Effect Effect
	Phase  models.Phase
	// Draft is the draft to persist for SaveDraft, Commit and Update.
	Draft *models.Draft
	// Target and Edit describe an Update. The edit is replayed onto the
	// subscriber as stored when written; see Manager.ApplyEdit.
	Target string
	Edit   models.Edit
	// FollowUpNote is stored on a committed subscriber.
	FollowUpNote string
}

// Input is the state Decide works from. Draft is nil when the sender has no
// conversation on record.
type Input struct {
	SenderID    string
	Draft       *models.Draft
	Subscribers []models.Subscriber
	Intent      intent.Intent
	Now         time.Time
}
