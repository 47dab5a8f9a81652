package models

import (
	"strings"
	"time"
)

// Phase is the step a sender's signup conversation is at.
type Phase string

const (
	PhaseCollecting    Phase = "COLLECTING"
	PhaseAwaitingEmail Phase = "AWAITING_EMAIL"
	PhaseAwaitingTeam  Phase = "AWAITING_TEAM"
	PhaseComplete      Phase = "COMPLETE"
	PhaseEditing       Phase = "EDITING"
)

// Collecting reports whether the phase belongs to an unfinished signup or edit.
func (p Phase) Collecting() bool {
	switch p {
	case PhaseCollecting, PhaseAwaitingEmail, PhaseAwaitingTeam:
		return true
	}
	return false
}

// Field names a subscriber attribute the conversation can ask for or edit.
type Field string

const (
	FieldChildName     Field = "child_name"
	FieldRelationship  Field = "relationship"
	FieldFavoriteTeams Field = "favorite_teams"
	FieldEmail         Field = "email"
)

// Fields is the editable part shared by drafts and subscribers.
type Fields struct {
	ChildName     string  `gorm:"type:varchar(100)" json:"child_name"`
	Relationship  string  `gorm:"type:varchar(50)" json:"relationship,omitempty"`
	FavoriteTeams TeamSet `gorm:"type:text;serializer:json" json:"favorite_teams"`
	Email         string  `gorm:"type:varchar(255)" json:"email"`
}

// Clone returns a copy that does not share the team slice.
func (f Fields) Clone() Fields {
	f.FavoriteTeams = f.FavoriteTeams.Clone()
	return f
}

// Equal compares two field sets; team order is ignored.
func (f Fields) Equal(o Fields) bool {
	return f.ChildName == o.ChildName &&
		f.Relationship == o.Relationship &&
		strings.EqualFold(f.Email, o.Email) &&
		f.FavoriteTeams.Equal(o.FavoriteTeams)
}

// Draft is the in-progress conversation state for one sender.
type Draft struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	SenderID string `gorm:"type:varchar(50);not null;uniqueIndex" json:"sender_id"`
	Fields   `gorm:"embedded"`
	Phase    Phase `gorm:"type:varchar(20);not null;default:'COLLECTING'" json:"phase"`
	// EditTarget is the public id of the subscriber an in-progress edit applies to.
	EditTarget   string    `gorm:"type:varchar(64)" json:"edit_target,omitempty"`
	SubscriberID string    `gorm:"type:varchar(64)" json:"subscriber_id,omitempty"`
	LastQuestion Field     `gorm:"type:varchar(50)" json:"last_question,omitempty"`
	// Pending is the edit in progress; Fields then previews its result.
	Pending      Edit      `gorm:"type:text;serializer:json" json:"pending"`
	Version      int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Draft) TableName() string {
	return "drafts"
}

// NewDraft returns an empty draft for sender in the COLLECTING phase.
func NewDraft(senderID string) *Draft {
	return &Draft{SenderID: senderID, Phase: PhaseCollecting}
}

// Editing reports whether the draft is working on a change to an existing subscriber.
func (d *Draft) Editing() bool {
	return d.EditTarget != ""
}

// Reset clears the conversation fields while keeping identity and version.
func (d *Draft) Reset() {
	d.Fields = Fields{}
	d.Phase = PhaseCollecting
	d.EditTarget = ""
	d.SubscriberID = ""
	d.LastQuestion = ""
	d.Pending = Edit{}
}

// Subscriber is a committed report recipient.
type Subscriber struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PublicID string `gorm:"type:varchar(64);not null;uniqueIndex" json:"id"`
	SenderID string `gorm:"type:varchar(50);index" json:"-"`
	Fields   `gorm:"embedded"`
	// NeedsFollowUp marks records with leagues outside the known catalog.
	NeedsFollowUp bool      `gorm:"default:false" json:"needs_follow_up"`
	FollowUpNote  string    `gorm:"type:text" json:"follow_up_note,omitempty"`
	Active        bool      `gorm:"default:true" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}

// Edit is a change to a subscriber that is still being collected. It is kept
// as operations rather than resulting values and replayed onto the record as
// stored when written, so changes made elsewhere in the meantime survive.
type Edit struct {
	ChildName    *string `json:"child_name,omitempty"`
	Relationship *string `json:"relationship,omitempty"`
	Email        *string `json:"email,omitempty"`
	// SetTeams replaces the stored teams before removals and additions run.
	SetTeams    *TeamSet `json:"set_teams,omitempty"`
	RemoveTeams TeamSet  `json:"remove_teams,omitempty"`
	AddTeams    TeamSet  `json:"add_teams,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool {
	return e.ChildName == nil && e.Relationship == nil && e.Email == nil &&
		e.SetTeams == nil && len(e.RemoveTeams) == 0 && len(e.AddTeams) == 0
}

// Apply writes the edit onto f.
func (e Edit) Apply(f *Fields) {
	if e.ChildName != nil {
		f.ChildName = *e.ChildName
	}
	if e.Relationship != nil {
		f.Relationship = *e.Relationship
	}
	if e.Email != nil {
		f.Email = *e.Email
	}
	if e.SetTeams != nil {
		f.FavoriteTeams = e.SetTeams.Clone()
	}
	for _, p := range e.RemoveTeams {
		f.FavoriteTeams = f.FavoriteTeams.Remove(p)
	}
	f.FavoriteTeams = f.FavoriteTeams.Union(e.AddTeams)
}

// Applied returns a copy of f with the edit applied.
func (e Edit) Applied(f Fields) Fields {
	f = f.Clone()
	e.Apply(&f)
	return f
}

// AddTeam records picks to add.
func (e *Edit) AddTeam(ts TeamSet) {
	if e.SetTeams != nil {
		set := e.SetTeams.Union(ts)
		e.SetTeams = &set
		return
	}
	e.AddTeams = e.AddTeams.Union(ts)
}

// RemoveTeam records a pick to remove. A placeholder removes its whole league.
func (e *Edit) RemoveTeam(p TeamPick) {
	if e.SetTeams != nil {
		set := e.SetTeams.Remove(p)
		e.SetTeams = &set
		return
	}
	e.AddTeams = e.AddTeams.Remove(p)
	if !e.RemoveTeams.Contains(p) {
		e.RemoveTeams = append(e.RemoveTeams.Clone(), p)
	}
}

// ReplaceTeams records a full replacement of the team list.
func (e *Edit) ReplaceTeams(ts TeamSet) {
	set := TeamSet(nil).Union(ts)
	e.SetTeams = &set
	e.RemoveTeams = nil
	e.AddTeams = nil
}

// ProcessedMessage records a provider message id that was handled.
type ProcessedMessage struct {
	MessageID string    `gorm:"primaryKey;type:varchar(255)" json:"message_id"`
	SenderID  string    `gorm:"type:varchar(50);index" json:"sender_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// Message represents a WhatsApp message
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"index;not null" json:"wa_id"`
	Sender    string    `gorm:"not null" json:"sender"`
	Content   string    `gorm:"type:text" json:"content"`
	Type      string    `gorm:"type:varchar(50)" json:"type"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// All lists every model managed by migrations.
func All() []any {
	return []any{
		&Draft{},
		&Subscriber{},
		&ProcessedMessage{},
		&Message{},
	}
}
