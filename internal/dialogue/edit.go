package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"sportsreport-bot/internal/intent"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/validator"
)

// ErrEditConflict means a pending edit no longer yields a complete record
// once replayed onto the subscriber as stored.
var ErrEditConflict = errors.New("edit conflicts with the stored subscriber")

func (t *turn) edit(child string, changes []intent.Change) Decision {
	subs := t.in.Subscribers
	name := cleanName(child)

	var sub *models.Subscriber
	switch {
	case name != "":
		sub = findByName(subs, name)
		if sub == nil {
			if len(subs) == 0 {
				return t.none(Action{Kind: ActionNoSubscription, ChildName: name})
			}
			return t.none(Action{Kind: ActionUnknownChild, ChildName: name, Children: childNames(subs)})
		}
	case t.draft != nil && t.draft.Editing():
		sub = findByID(subs, t.draft.EditTarget)
	case t.draft != nil && t.draft.Phase == models.PhaseComplete:
		sub = findByID(subs, t.draft.SubscriberID)
	}
	if sub == nil {
		switch len(subs) {
		case 0:
			return t.none(Action{Kind: ActionNoSubscription})
		case 1:
			sub = &subs[0]
		default:
			return t.none(Action{Kind: ActionAskWhichChild, Children: childNames(subs)})
		}
	}

	if len(changes) == 0 {
		d := t.editingDraft(sub, t.pending(sub))
		d.Phase = models.PhaseEditing
		d.LastQuestion = ""
		return Decision{
			Action: Action{Kind: ActionAskEditDetails, ChildName: sub.ChildName, SubscriberID: sub.PublicID, Editing: true},
			Effect: EffectSaveDraft,
			Phase:  models.PhaseEditing,
			Draft:  d,
		}
	}
	return t.applyEdit(sub, changes)
}

// editAnswer treats an answer given while editing as a change to the target.
func (t *turn) editAnswer(a intent.FieldAnswer) Decision {
	sub := findByID(t.in.Subscribers, t.draft.EditTarget)
	if sub == nil {
		return t.clarify()
	}
	c := intent.Change{Field: a.Field, Op: intent.OpSet, Value: a.Value, Teams: a.Teams}
	if a.Field == models.FieldFavoriteTeams {
		c.Op = intent.OpAdd
	}
	return t.applyEdit(sub, []intent.Change{c})
}

// pending is the edit already in progress for sub, empty when there is none.
func (t *turn) pending(sub *models.Subscriber) models.Edit {
	if d := t.draft; d != nil && d.Editing() && d.EditTarget == sub.PublicID {
		return d.Pending
	}
	return models.Edit{}
}

// editingDraft records e as the pending edit of sub. Fields previews e on
// the record as loaded this turn.
func (t *turn) editingDraft(sub *models.Subscriber, e models.Edit) *models.Draft {
	d := t.base()
	d.Fields = e.Applied(sub.Fields)
	d.Pending = e
	d.EditTarget = sub.PublicID
	d.SubscriberID = sub.PublicID
	return d
}

func (t *turn) applyEdit(sub *models.Subscriber, changes []intent.Change) Decision {
	edit := t.pending(sub)

	var emailIssue *validator.Issue
	for _, c := range changes {
		issue, reject := t.applyChange(sub.Fields, &edit, c)
		if reject {
			return t.none(Action{Kind: ActionInvalidEdit, Field: issue.Field, Issue: issue, ChildName: sub.ChildName, Editing: true})
		}
		if issue != nil && emailIssue == nil {
			emailIssue = issue
		}
	}
	next := edit.Applied(sub.Fields)

	v := t.validator.Validate(next)
	issue := v.Issue
	if issue == nil {
		issue = emailIssue
	}
	if issue != nil {
		d := t.editingDraft(sub, edit)
		d.Phase = phaseFor(issue.Field)
		d.LastQuestion = issue.Field
		return Decision{
			Action: Action{
				Kind:         ActionAskField,
				Field:        issue.Field,
				Issue:        issue,
				League:       issue.League,
				ChildName:    next.ChildName,
				SubscriberID: sub.PublicID,
				Editing:      true,
			},
			Effect: EffectSaveDraft,
			Phase:  d.Phase,
			Draft:  d,
		}
	}

	snap := t.base()
	snap.Fields = next.Clone()
	snap.Phase = models.PhaseComplete
	snap.EditTarget = ""
	snap.SubscriberID = sub.PublicID
	snap.LastQuestion = ""
	snap.Pending = models.Edit{}

	if next.Equal(sub.Fields) && v.FollowUpNote() == sub.FollowUpNote {
		a := Action{Kind: ActionNoChange, ChildName: sub.ChildName, SubscriberID: sub.PublicID}
		if t.isSnapshotOf(sub) {
			return t.none(a)
		}
		return Decision{Action: a, Effect: EffectSaveDraft, Phase: models.PhaseComplete, Draft: snap}
	}

	return Decision{
		Action: Action{
			Kind:         ActionEditApplied,
			ChildName:    next.ChildName,
			Fields:       next.Clone(),
			SubscriberID: sub.PublicID,
			FollowUp:     len(v.Flags) > 0,
		},
		Effect: EffectUpdate,
		Phase:  models.PhaseComplete,
		Draft:  snap,
		Target: sub.PublicID,
		Edit:   edit,
	}
}

// ApplyEdit replays e onto sub as currently stored and refreshes its
// follow-up flag. It fails with ErrEditConflict when the result is no longer
// a complete record.
func (m *Manager) ApplyEdit(sub *models.Subscriber, e models.Edit) error {
	next := e.Applied(sub.Fields)
	v := m.validator.Validate(next)
	if v.Issue != nil {
		return fmt.Errorf("%w: %s %s", ErrEditConflict, v.Issue.Field, v.Issue.Reason)
	}
	note := v.FollowUpNote()
	sub.Fields = next
	sub.FollowUpNote = note
	sub.NeedsFollowUp = note != ""
	return nil
}

// isSnapshotOf reports whether the stored draft already mirrors sub, in which
// case a no-op edit needs no write.
func (t *turn) isSnapshotOf(sub *models.Subscriber) bool {
	d := t.stored
	return d != nil && t.draft != nil &&
		d.Phase == models.PhaseComplete && !d.Editing() &&
		d.SubscriberID == sub.PublicID && d.Fields.Equal(sub.Fields)
}

// applyChange records c on e, checked against e applied to base. A non-nil
// issue with reject=false is a bad email that leaves e unchanged and is asked
// again; reject=true refuses the whole edit.
func (t *turn) applyChange(base models.Fields, e *models.Edit, c intent.Change) (issue *validator.Issue, reject bool) {
	switch c.Field {
	case models.FieldChildName:
		name := cleanName(c.Value)
		if issue := t.validator.ChildName(name); issue != nil {
			return issue, true
		}
		e.ChildName = &name
	case models.FieldRelationship:
		rel := strings.ToLower(clean(c.Value))
		if issue := t.validator.Relationship(rel); issue != nil {
			return issue, true
		}
		e.Relationship = &rel
	case models.FieldEmail:
		email := cleanEmail(c.Value)
		if issue := t.validator.Email(email); issue != nil {
			return issue, false
		}
		e.Email = &email
	case models.FieldFavoriteTeams:
		pending, _ := e.Applied(base).FavoriteTeams.FirstPlaceholder()
		teams := t.cleanTeams(c.Teams, pending.League)
		if len(teams) == 0 {
			return nil, false
		}
		next := *e
		switch c.Op {
		case intent.OpRemove:
			for _, p := range teams {
				next.RemoveTeam(p)
			}
		case intent.OpSet:
			next.ReplaceTeams(teams)
		default:
			next.AddTeam(teams)
		}
		if len(next.Applied(base).FavoriteTeams) == 0 {
			return &validator.Issue{Field: models.FieldFavoriteTeams, Reason: validator.ReasonMissing}, true
		}
		*e = next
	}
	return nil, false
}
