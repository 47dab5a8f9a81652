package intent

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
)

var (
	emailToken   = regexp.MustCompile(`[^\s,;:<>()"]*@[^\s,;:<>()"]*`)
	signupVerb   = regexp.MustCompile(`(?i)\b(sign\s+(?:[\w']+\s+){0,3}up|signup|register|subscribe|enrol{1,2})\b`)
	editVerb     = regexp.MustCompile(`(?i)\b(add|include|remove|drop|delete|take\s+(?:out|off)|change|update|switch|replace|swap|edit|modify|set)\b`)
	removeVerb   = regexp.MustCompile(`(?i)\b(remove|drop|delete|take\s+(?:out|off)|no\s+longer|stop)\b`)
	relation     = regexp.MustCompile(`(?i)\b(daughter|son|kid|child|grandson|granddaughter|nephew|niece|boy|girl|stepson|stepdaughter)\b[\s,]+(?:named\s+|called\s+)?([\p{L}][\p{L}'-]*)`)
	namedAs      = regexp.MustCompile(`(?i)\b(?:named|called|name\s+is)\s+([\p{L}][\p{L}'-]*)`)
	signupObject = regexp.MustCompile(`(?i)\b(?:sign\s*up|register|subscribe|enrol{1,2})\s+(?:for\s+)?([\p{L}][\p{L}'-]*)`)
	possessive   = regexp.MustCompile(`\b([\p{L}][\p{L}-]*)'s\b`)
	nameChange   = regexp.MustCompile(`(?i)\bname\s+to\s+([\p{L}][\p{L}' -]*)`)
	fromTo       = regexp.MustCompile(`(?i)\bfrom\s+(.+?)\s+to\s+(.+)$`)
	greeting     = regexp.MustCompile(`(?i)^(hi|hello|hey|yo|hiya|thanks|thank\s+you|thx|ty|ok|okay|cool|great|awesome|perfect|bye|goodbye|good\s+(?:morning|afternoon|evening|night))[\s!.,:)]*$`)
	filler       = regexp.MustCompile(`(?i)^(?:(?:her|his|their|the\s+kid'?s|my\s+\w+'s)\s+name\s+is|name\s+is|it'?s|it\s+is|she'?s|he'?s|they'?re|(?:she|he)\s+(?:likes|loves|supports)|they\s+(?:like|love|support)|probably|definitely|maybe|the)\s+`)
	nameLike     = regexp.MustCompile(`^[\p{L}][\p{L}\p{N}'.&\- ]*$`)
)

// Words that never name a child.
var notNames = map[string]bool{
	"my": true, "me": true, "our": true, "for": true, "up": true, "to": true,
	"the": true, "a": true, "an": true, "and": true, "he": true, "she": true,
	"they": true, "him": true, "her": true, "them": true, "who": true, "is": true,
	"loves": true, "likes": true, "love": true, "like": true, "was": true,
	"please": true, "now": true, "today": true, "with": true, "into": true,
	"in": true, "on": true, "also": true, "named": true, "called": true,
	"kid": true, "kids": true, "son": true, "daughter": true, "child": true,
	"report": true, "reports": true, "sports": true, "daily": true, "i": true,
	"we": true, "you": true, "it": true, "that": true, "this": true, "let": true,
	"what": true, "there": true, "here": true, "where": true, "how": true,
	"one": true, "everyone": true, "mom": true, "dad": true, "name": true,
}

// RuleExtractor classifies messages with keyword patterns and catalog lookups.
// It needs no network and is the fallback behind the model extractor.
type RuleExtractor struct {
	catalog *sports.Catalog
}

func NewRuleExtractor(catalog *sports.Catalog) *RuleExtractor {
	return &RuleExtractor{catalog: catalog}
}

func (r *RuleExtractor) Extract(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(strings.NewReplacer("’", "'", "‘", "'").Replace(text))
	if text == "" {
		return Ambiguous{Reason: ReasonEmpty}, nil
	}
	if greeting.MatchString(text) {
		return Unrelated{}, nil
	}

	email := findEmail(text)
	teams := r.catalog.Scan(text)

	if signupVerb.MatchString(text) {
		rel, name := r.childOf(text)
		return NewSignup{ChildName: name, Relationship: rel, Email: email, Teams: teams}, nil
	}

	target, known := r.targetChild(text, snap.KnownChildren)
	if r.isEdit(text, target, known, email, teams, snap) {
		return EditRequest{TargetChild: target, Changes: r.changes(text, email, teams)}, nil
	}
	return r.answer(text, email, teams, snap), nil
}

func (r *RuleExtractor) isEdit(text, target string, known bool, email string, teams models.TeamSet, snap Snapshot) bool {
	draftChild := target != "" && strings.EqualFold(target, snap.ChildName) && snap.Phase.Collecting() && snap.EditTarget == ""
	if editVerb.MatchString(text) {
		switch {
		case draftChild:
			return false
		case known, snap.EditTarget != "", snap.Phase == models.PhaseComplete:
			return true
		case target != "":
			return true
		case snap.Phase == "" && len(snap.KnownChildren) > 0:
			return true
		}
		return false
	}
	return known && !draftChild && (email != "" || len(teams) > 0)
}

func (r *RuleExtractor) changes(text, email string, teams models.TeamSet) []Change {
	var out []Change
	if m := fromTo.FindStringSubmatch(text); m != nil {
		old, next := r.catalog.Scan(m[1]), r.catalog.Scan(m[2])
		if len(old) > 0 && len(next) > 0 {
			out = append(out,
				Change{Field: models.FieldFavoriteTeams, Op: OpRemove, Teams: old},
				Change{Field: models.FieldFavoriteTeams, Op: OpAdd, Teams: next},
			)
			teams = nil
		}
	}
	if len(teams) > 0 {
		op := OpAdd
		if removeVerb.MatchString(text) {
			op = OpRemove
		}
		out = append(out, Change{Field: models.FieldFavoriteTeams, Op: op, Teams: teams})
	}
	if email != "" {
		out = append(out, Change{Field: models.FieldEmail, Op: OpSet, Value: email})
	}
	if m := nameChange.FindStringSubmatch(text); m != nil {
		out = append(out, Change{Field: models.FieldChildName, Op: OpSet, Value: titleCase(trimPunct(m[1]))})
	}
	return out
}

func (r *RuleExtractor) answer(text, email string, teams models.TeamSet, snap Snapshot) Intent {
	bare := stripFiller(text)
	short := looksLikeName(bare)

	switch {
	case email != "":
		return FieldAnswer{Field: models.FieldEmail, Value: email}
	case len(teams) > 0:
		return FieldAnswer{Field: models.FieldFavoriteTeams, Teams: teams}
	case snap.PendingLeague != "" && short:
		return FieldAnswer{Field: models.FieldFavoriteTeams, Teams: models.TeamSet{{League: snap.PendingLeague, Team: bare}}}
	case snap.LastQuestion == models.FieldFavoriteTeams && short:
		// a team the catalog does not know; the league is resolved later
		return FieldAnswer{Field: models.FieldFavoriteTeams, Teams: models.TeamSet{{Team: bare}}}
	case short && (snap.LastQuestion == models.FieldChildName || (snap.Phase.Collecting() && snap.ChildName == "" && snap.EditTarget == "")):
		return FieldAnswer{Field: models.FieldChildName, Value: titleCase(bare)}
	case snap.LastQuestion == models.FieldEmail && !strings.ContainsRune(bare, ' '):
		return FieldAnswer{Field: models.FieldEmail, Value: bare}
	case snap.Phase.Collecting() || snap.EditTarget != "":
		return Ambiguous{Reason: ReasonUnrecognized}
	}
	return Unrelated{}
}

// childOf finds the relationship word and child name in a signup message.
func (r *RuleExtractor) childOf(text string) (rel, name string) {
	if m := relation.FindStringSubmatch(text); m != nil {
		rel = strings.ToLower(m[1])
		if r.nameCandidate(m[2]) {
			return rel, titleCase(m[2])
		}
	}
	for _, re := range []*regexp.Regexp{namedAs, signupObject} {
		if m := re.FindStringSubmatch(text); m != nil && r.nameCandidate(m[1]) {
			return rel, titleCase(m[1])
		}
	}
	return rel, ""
}

func (r *RuleExtractor) nameCandidate(word string) bool {
	w := strings.ToLower(strings.TrimSuffix(word, "'s"))
	if w == "" || notNames[w] {
		return false
	}
	return len(r.catalog.Scan(w)) == 0
}

// targetChild returns the child an edit is about. known is true when the name
// matches one of the sender's existing children.
func (r *RuleExtractor) targetChild(text string, children []string) (string, bool) {
	for _, child := range children {
		if child == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(child) + `\b`)
		if re.MatchString(text) {
			return child, true
		}
	}
	for _, m := range possessive.FindAllStringSubmatch(text, -1) {
		if r.nameCandidate(m[1]) {
			return titleCase(m[1]), false
		}
	}
	return "", false
}

func findEmail(text string) string {
	return trimPunct(emailToken.FindString(text))
}

func stripFiller(text string) string {
	s := trimPunct(text)
	for {
		next := filler.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

func looksLikeName(s string) bool {
	return s != "" && len(strings.Fields(s)) <= 4 && nameLike.MatchString(s)
}

func trimPunct(s string) string {
	return strings.TrimFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsPunct(r) && r != '@' && r != '&'
	})
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
