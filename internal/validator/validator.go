// Package validator checks subscriber fields before anything is stored.
package validator

import (
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"

	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
)

const (
	MaxChildNameLen    = 60
	MaxRelationshipLen = 40
	MaxEmailLen        = 254
	MaxTeamLen         = 60
	MaxTeams           = 12
)

// Reason says why a field was rejected.
type Reason string

const (
	ReasonMissing     Reason = "missing"
	ReasonMalformed   Reason = "malformed"
	ReasonTeamMissing Reason = "team_missing"
	ReasonTooLong     Reason = "too_long"
)

// Issue is the first problem found in a record. League is set for
// team_missing.
type Issue struct {
	Field  models.Field
	Reason Reason
	League string
}

func (i *Issue) Error() string {
	return string(i.Field) + ": " + string(i.Reason)
}

// Verdict is the outcome of validating a record. Flags lists picks in leagues
// the report does not cover yet; they are accepted but need a human.
type Verdict struct {
	Issue *Issue
	Flags models.TeamSet
}

func (v Verdict) OK() bool {
	return v.Issue == nil
}

// FollowUpNote describes the flagged picks, or "" when there are none.
func (v Verdict) FollowUpNote() string {
	if len(v.Flags) == 0 {
		return ""
	}
	return "unsupported league requested: " + v.Flags.String()
}

type Validator struct {
	catalog  *sports.Catalog
	validate *playground.Validate
}

func New(catalog *sports.Catalog) *Validator {
	return &Validator{
		catalog:  catalog,
		validate: playground.New(),
	}
}

// Validate checks child name, favorite teams and email in that order and
// reports the first problem. It never panics and never returns an error.
func (v *Validator) Validate(f models.Fields) Verdict {
	verdict := Verdict{Flags: v.Unsupported(f.FavoriteTeams)}
	checks := []func() *Issue{
		func() *Issue { return v.ChildName(f.ChildName) },
		func() *Issue { return v.Relationship(f.Relationship) },
		func() *Issue { return v.Teams(f.FavoriteTeams) },
		func() *Issue { return v.Email(f.Email) },
	}
	for _, check := range checks {
		if issue := check(); issue != nil {
			verdict.Issue = issue
			break
		}
	}
	return verdict
}

func (v *Validator) ChildName(name string) *Issue {
	name = strings.TrimSpace(name)
	if name == "" {
		return &Issue{Field: models.FieldChildName, Reason: ReasonMissing}
	}
	if utf8.RuneCountInString(name) > MaxChildNameLen {
		return &Issue{Field: models.FieldChildName, Reason: ReasonTooLong}
	}
	return nil
}

// Relationship is optional; only its length is bounded.
func (v *Validator) Relationship(rel string) *Issue {
	if utf8.RuneCountInString(rel) > MaxRelationshipLen {
		return &Issue{Field: models.FieldRelationship, Reason: ReasonTooLong}
	}
	return nil
}

func (v *Validator) Teams(teams models.TeamSet) *Issue {
	if len(teams) == 0 {
		return &Issue{Field: models.FieldFavoriteTeams, Reason: ReasonMissing}
	}
	if len(teams) > MaxTeams {
		return &Issue{Field: models.FieldFavoriteTeams, Reason: ReasonTooLong}
	}
	for _, p := range teams {
		if utf8.RuneCountInString(p.Team) > MaxTeamLen || utf8.RuneCountInString(p.League) > MaxTeamLen {
			return &Issue{Field: models.FieldFavoriteTeams, Reason: ReasonTooLong}
		}
		if strings.TrimSpace(p.League) == "" {
			return &Issue{Field: models.FieldFavoriteTeams, Reason: ReasonMalformed}
		}
	}
	if p, ok := teams.FirstPlaceholder(); ok {
		return &Issue{Field: models.FieldFavoriteTeams, Reason: ReasonTeamMissing, League: p.League}
	}
	return nil
}

func (v *Validator) Email(email string) *Issue {
	email = strings.TrimSpace(email)
	if email == "" {
		return &Issue{Field: models.FieldEmail, Reason: ReasonMissing}
	}
	if len(email) > MaxEmailLen {
		return &Issue{Field: models.FieldEmail, Reason: ReasonTooLong}
	}
	if err := v.validate.Var(email, "required,email"); err != nil {
		return &Issue{Field: models.FieldEmail, Reason: ReasonMalformed}
	}
	return nil
}

// Unsupported returns the picks whose league is not in the catalog.
func (v *Validator) Unsupported(teams models.TeamSet) models.TeamSet {
	var out models.TeamSet
	for _, p := range teams {
		if !v.catalog.Known(p.League) {
			out = append(out, p)
		}
	}
	return out
}
