// Package sports holds the leagues and teams the daily report knows about and
// resolves the loose names parents type ("the Celtics", "premier league") to
// canonical (league, team) picks.
package sports

import (
	"sort"
	"strings"
	"unicode"

	"sportsreport-bot/internal/models"
)

type League struct {
	Code    string
	Name    string
	Aliases []string
	Teams   []Team
}

// HasRoster reports whether team names in this league are checked against a list.
func (l League) HasRoster() bool {
	return len(l.Teams) > 0
}

type Team struct {
	Name    string
	Aliases []string
}

type alias struct {
	text   string
	league string
	team   string
}

// Catalog indexes leagues and teams by their aliases.
type Catalog struct {
	leagues     []League
	byCode      map[string]League
	leagueAlias []alias
	teamAlias   []alias
}

func New(leagues []League) *Catalog {
	c := &Catalog{
		leagues: leagues,
		byCode:  make(map[string]League, len(leagues)),
	}
	for _, l := range leagues {
		c.byCode[l.Code] = l
		for _, a := range append([]string{l.Code, l.Name}, l.Aliases...) {
			c.leagueAlias = append(c.leagueAlias, alias{text: normalize(a), league: l.Code})
		}
		for _, t := range l.Teams {
			for _, a := range append([]string{t.Name}, t.Aliases...) {
				c.teamAlias = append(c.teamAlias, alias{text: normalize(a), league: l.Code, team: t.Name})
			}
		}
	}
	longestFirst(c.leagueAlias)
	longestFirst(c.teamAlias)
	return c
}

func longestFirst(as []alias) {
	sort.SliceStable(as, func(i, j int) bool { return len(as[i].text) > len(as[j].text) })
}

func (c *Catalog) Leagues() []League {
	return c.leagues
}

// League returns the league with the given code.
func (c *Catalog) League(code string) (League, bool) {
	l, ok := c.byCode[code]
	return l, ok
}

// Known reports whether code is a league the report supports.
func (c *Catalog) Known(code string) bool {
	_, ok := c.byCode[code]
	return ok
}

// LookupLeague resolves a league code, name or alias.
func (c *Catalog) LookupLeague(text string) (League, bool) {
	n := normalize(text)
	for _, a := range c.leagueAlias {
		if a.text == n {
			return c.byCode[a.league], true
		}
	}
	return League{}, false
}

// LookupTeam resolves a team name or nickname, optionally restricted to league.
func (c *Catalog) LookupTeam(text, league string) (models.TeamPick, bool) {
	n := normalize(text)
	for _, a := range c.teamAlias {
		if league != "" && a.league != league {
			continue
		}
		if a.text == n {
			return models.TeamPick{League: a.league, Team: a.team}, true
		}
	}
	return models.TeamPick{}, false
}

// Scan finds every team and league mentioned in text. Team mentions win over
// league mentions of the same league; leagues mentioned without a team come
// back as placeholders.
func (c *Catalog) Scan(text string) models.TeamSet {
	padded := " " + normalize(text) + " "

	var picks models.TeamSet
	for _, a := range c.teamAlias {
		needle := " " + a.text + " "
		if strings.Contains(padded, needle) {
			picks = picks.Add(models.TeamPick{League: a.league, Team: a.team})
			padded = strings.ReplaceAll(padded, needle, "  ")
		}
	}
	for _, a := range c.leagueAlias {
		needle := " " + a.text + " "
		if strings.Contains(padded, needle) {
			picks = picks.Add(models.TeamPick{League: a.league})
			padded = strings.ReplaceAll(padded, needle, "  ")
		}
	}
	return picks
}

// Canonical maps a pick to catalog spelling. The second result is false when
// the league is unknown or the team is not on the league's roster; such picks
// are kept with cleaned-up spelling.
func (c *Catalog) Canonical(p models.TeamPick) (models.TeamPick, bool) {
	team := strings.TrimSpace(p.Team)
	league, ok := c.LookupLeague(p.League)
	if !ok {
		if found, ok := c.LookupTeam(team, ""); ok && strings.TrimSpace(p.League) == "" {
			return found, true
		}
		return models.TeamPick{League: strings.ToUpper(strings.TrimSpace(p.League)), Team: titleCase(team)}, false
	}
	if team == "" {
		return models.TeamPick{League: league.Code}, true
	}
	if !league.HasRoster() {
		return models.TeamPick{League: league.Code, Team: titleCase(team)}, true
	}
	if found, ok := c.LookupTeam(team, league.Code); ok {
		return found, true
	}
	return models.TeamPick{League: league.Code, Team: titleCase(team)}, false
}

// DisplayLeague returns the human name for a league code.
func (c *Catalog) DisplayLeague(code string) string {
	if l, ok := c.byCode[code]; ok {
		return l.Name
	}
	return code
}

func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case r == '.' || r == '\'':
			// "D.C. United", "Sofia's"
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToLower(w) {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}
