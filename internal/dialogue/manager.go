package dialogue

import (
	"strings"
	"time"

	"sportsreport-bot/internal/intent"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
	"sportsreport-bot/internal/validator"
)

// OtherLeague holds teams the catalog could not place in any league.
const OtherLeague = "OTHER"

type Manager struct {
	catalog   *sports.Catalog
	validator *validator.Validator
	draftTTL  time.Duration
}

// NewManager returns a manager. Drafts idle longer than draftTTL while
// collecting or editing are discarded; zero disables expiry.
func NewManager(catalog *sports.Catalog, v *validator.Validator, draftTTL time.Duration) *Manager {
	return &Manager{catalog: catalog, validator: v, draftTTL: draftTTL}
}

// turn is one Decide call. stored is the draft as loaded; draft is what the
// conversation continues from, nil when stored expired or does not exist.
type turn struct {
	*Manager
	in     Input
	stored *models.Draft
	draft  *models.Draft
}

// Decide maps (draft phase, intent) to a decision. Every pair has an outcome;
// anything without a specific rule gets a clarification.
func (m *Manager) Decide(in Input) Decision {
	t := &turn{Manager: m, in: in, stored: in.Draft, draft: in.Draft}
	if t.expired() {
		t.draft = nil
	}

	switch it := in.Intent.(type) {
	case intent.NewSignup:
		return t.signup(it)
	case intent.EditRequest:
		return t.edit(it.TargetChild, it.Changes)
	case intent.FieldAnswer:
		return t.answer(it)
	case intent.Unrelated:
		return t.none(Action{Kind: ActionRedirect})
	}
	return t.clarify()
}

func (t *turn) expired() bool {
	d := t.stored
	if d == nil || t.draftTTL <= 0 || t.in.Now.IsZero() || d.UpdatedAt.IsZero() {
		return false
	}
	if d.Phase == models.PhaseComplete && !d.Editing() {
		return false
	}
	return t.in.Now.Sub(d.UpdatedAt) > t.draftTTL
}

// base returns a copy of the stored draft, or a new one, to build on. The copy
// keeps id and version so the store can compare-and-swap.
func (t *turn) base() *models.Draft {
	if t.stored == nil {
		return models.NewDraft(t.in.SenderID)
	}
	c := *t.stored
	c.Fields = t.stored.Fields.Clone()
	return &c
}

func (t *turn) phase() models.Phase {
	if t.draft == nil {
		return ""
	}
	return t.draft.Phase
}

func (t *turn) none(a Action) Decision {
	return Decision{Action: a, Effect: EffectNone, Phase: t.phase()}
}

func (t *turn) signup(s intent.NewSignup) Decision {
	name := cleanName(s.ChildName)
	if name != "" {
		if sub := findByName(t.in.Subscribers, name); sub != nil {
			return t.alreadySubscribed(sub)
		}
	}

	cur := t.draft
	fresh := cur == nil || !cur.Phase.Collecting() || cur.Editing() ||
		(name != "" && cur.ChildName != "" && !strings.EqualFold(cur.ChildName, name))

	d := t.base()
	if fresh {
		d.Reset()
		d.Email = t.sharedEmail()
	}
	if name != "" {
		d.ChildName = name
	}
	if rel := clean(s.Relationship); rel != "" {
		d.Relationship = strings.ToLower(rel)
	}

	var emailIssue *validator.Issue
	if s.Email != "" {
		email := cleanEmail(s.Email)
		if emailIssue = t.validator.Email(email); emailIssue == nil {
			d.Email = email
		}
	}
	d.FavoriteTeams = d.FavoriteTeams.Union(t.cleanTeams(s.Teams, ""))
	return t.progress(d, emailIssue)
}

// alreadySubscribed turns a signup for an existing child into an edit of it.
func (t *turn) alreadySubscribed(sub *models.Subscriber) Decision {
	d := t.editingDraft(sub, models.Edit{})
	d.Phase = models.PhaseEditing
	d.LastQuestion = ""
	return Decision{
		Action: Action{Kind: ActionAlreadySubscribed, ChildName: sub.ChildName, SubscriberID: sub.PublicID, Editing: true},
		Effect: EffectSaveDraft,
		Phase:  models.PhaseEditing,
		Draft:  d,
	}
}

// sharedEmail returns the email every existing subscriber of the sender uses,
// so a parent adding a second child is not asked again.
func (t *turn) sharedEmail() string {
	email := ""
	for _, s := range t.in.Subscribers {
		switch {
		case s.Email == "":
		case email == "":
			email = s.Email
		case !strings.EqualFold(email, s.Email):
			return ""
		}
	}
	return email
}

// progress saves an unfinished signup and asks for the next missing field, or
// commits it once it is complete. emailIssue overrides a missing-email issue
// when the sender supplied an address that failed validation.
func (t *turn) progress(d *models.Draft, emailIssue *validator.Issue) Decision {
	v := t.validator.Validate(d.Fields)
	if v.OK() {
		d.Phase = models.PhaseComplete
		d.LastQuestion = ""
		return Decision{
			Action: Action{
				Kind:      ActionConfirmSignup,
				ChildName: d.ChildName,
				Fields:    d.Fields.Clone(),
				FollowUp:  len(v.Flags) > 0,
			},
			Effect:       EffectCommit,
			Phase:        models.PhaseComplete,
			Draft:        d,
			FollowUpNote: v.FollowUpNote(),
		}
	}

	issue := v.Issue
	if emailIssue != nil && issue.Field == models.FieldEmail {
		issue = emailIssue
	}
	d.Phase = phaseFor(issue.Field)
	d.LastQuestion = issue.Field
	return Decision{
		Action: Action{
			Kind:      ActionAskField,
			Field:     issue.Field,
			Issue:     issue,
			League:    issue.League,
			ChildName: d.ChildName,
		},
		Effect: EffectSaveDraft,
		Phase:  d.Phase,
		Draft:  d,
	}
}

func phaseFor(f models.Field) models.Phase {
	switch f {
	case models.FieldFavoriteTeams:
		return models.PhaseAwaitingTeam
	case models.FieldEmail:
		return models.PhaseAwaitingEmail
	}
	return models.PhaseCollecting
}

func (t *turn) answer(a intent.FieldAnswer) Decision {
	d := t.draft
	if d == nil {
		return t.clarify()
	}
	if d.Editing() {
		return t.editAnswer(a)
	}
	if !d.Phase.Collecting() {
		return t.none(Action{Kind: ActionAllSet, ChildName: d.ChildName, SubscriberID: d.SubscriberID})
	}

	if a.Field == models.FieldChildName {
		if sub := findByName(t.in.Subscribers, cleanName(a.Value)); sub != nil {
			return t.alreadySubscribed(sub)
		}
	}

	next := t.base()
	issue, ok := t.applyAnswer(next, a)
	if !ok {
		return t.clarify()
	}
	if issue != nil {
		return t.none(Action{
			Kind:      ActionAskField,
			Field:     issue.Field,
			Issue:     issue,
			League:    issue.League,
			ChildName: d.ChildName,
		})
	}
	return t.progress(next, nil)
}

// applyAnswer merges one answer into d. ok is false for fields that cannot be
// answered; issue is set when the value itself is invalid and d is untouched.
func (t *turn) applyAnswer(d *models.Draft, a intent.FieldAnswer) (issue *validator.Issue, ok bool) {
	switch a.Field {
	case models.FieldChildName:
		name := cleanName(a.Value)
		if issue := t.validator.ChildName(name); issue != nil {
			return issue, true
		}
		d.ChildName = name
	case models.FieldRelationship:
		rel := strings.ToLower(clean(a.Value))
		if issue := t.validator.Relationship(rel); issue != nil {
			return issue, true
		}
		d.Relationship = rel
	case models.FieldEmail:
		email := cleanEmail(a.Value)
		if issue := t.validator.Email(email); issue != nil {
			return issue, true
		}
		d.Email = email
	case models.FieldFavoriteTeams:
		pending, _ := d.FavoriteTeams.FirstPlaceholder()
		teams := t.cleanTeams(a.Teams, pending.League)
		if len(teams) == 0 {
			return &validator.Issue{Field: models.FieldFavoriteTeams, Reason: validator.ReasonMissing, League: pending.League}, true
		}
		d.FavoriteTeams = d.FavoriteTeams.Union(teams)
	default:
		return nil, false
	}
	return nil, true
}

// clarify re-asks whatever the conversation is waiting for.
func (t *turn) clarify() Decision {
	d := t.draft
	a := Action{Kind: ActionClarify}
	if d == nil {
		return t.none(a)
	}
	a.ChildName = d.ChildName
	a.Editing = d.Editing()
	if d.Phase.Collecting() {
		a.Field = d.LastQuestion
		if v := t.validator.Validate(d.Fields); v.Issue != nil {
			a.Field = v.Issue.Field
			a.League = v.Issue.League
		}
	}
	return t.none(a)
}

func findByName(subs []models.Subscriber, name string) *models.Subscriber {
	for i := range subs {
		if strings.EqualFold(strings.TrimSpace(subs[i].ChildName), name) {
			return &subs[i]
		}
	}
	return nil
}

func findByID(subs []models.Subscriber, id string) *models.Subscriber {
	if id == "" {
		return nil
	}
	for i := range subs {
		if subs[i].PublicID == id {
			return &subs[i]
		}
	}
	return nil
}

func childNames(subs []models.Subscriber) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ChildName)
	}
	return out
}
