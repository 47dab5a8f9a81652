package dialogue

import (
	"strings"
	"unicode"

	"sportsreport-bot/internal/models"
)

// clean trims s, collapses inner whitespace and drops control characters.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// cleanName capitalises names typed in lower case and leaves other casing
// ("McKenzie", "DeShawn") alone.
func cleanName(s string) string {
	s = strings.Trim(clean(s), ".,!?;:\"")
	if s == "" || s != strings.ToLower(s) {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func cleanEmail(s string) string {
	return strings.ToLower(strings.Trim(clean(s), ".,;:<>\"'"))
}

// cleanTeams canonicalises extracted picks. Picks without a league go to the
// pending league when there is one and OtherLeague otherwise.
func (t *turn) cleanTeams(ts models.TeamSet, pendingLeague string) models.TeamSet {
	var out models.TeamSet
	for _, p := range ts {
		p = models.TeamPick{League: clean(p.League), Team: clean(p.Team)}
		if p.League == "" && p.Team == "" {
			continue
		}
		if p.League == "" && pendingLeague != "" {
			if found, ok := t.catalog.LookupTeam(p.Team, ""); !ok || found.League == pendingLeague {
				p.League = pendingLeague
			}
		}
		canon, _ := t.catalog.Canonical(p)
		if canon.League == "" {
			canon.League = OtherLeague
		}
		out = out.Add(canon)
	}
	return out
}
