package models

import (
	"sort"
	"strings"
)

// TeamPick is one (league, team) preference. An empty Team is a placeholder
// for a league whose team has not been chosen yet.
type TeamPick struct {
	League string `json:"league"`
	Team   string `json:"team"`
}

func (p TeamPick) key() string {
	return strings.ToLower(p.League) + "|" + strings.ToLower(p.Team)
}

// Placeholder reports whether the team is still missing.
func (p TeamPick) Placeholder() bool {
	return strings.TrimSpace(p.Team) == ""
}

func (p TeamPick) String() string {
	if p.Placeholder() {
		return p.League
	}
	return p.Team + " (" + p.League + ")"
}

// TeamSet is a set of picks, unique per league+team (case-insensitive).
type TeamSet []TeamPick

func (s TeamSet) Clone() TeamSet {
	if s == nil {
		return nil
	}
	out := make(TeamSet, len(s))
	copy(out, s)
	return out
}

func (s TeamSet) Contains(p TeamPick) bool {
	k := p.key()
	for _, existing := range s {
		if existing.key() == k {
			return true
		}
	}
	return false
}

// Add returns the union of s and p. A concrete pick fills an existing
// placeholder for the same league; a placeholder is dropped when the league
// already has any pick.
func (s TeamSet) Add(p TeamPick) TeamSet {
	if s.Contains(p) {
		return s
	}
	if p.Placeholder() {
		for _, existing := range s {
			if strings.EqualFold(existing.League, p.League) {
				return s
			}
		}
		return append(s.Clone(), p)
	}
	out := s.Clone()
	for i, existing := range out {
		if existing.Placeholder() && strings.EqualFold(existing.League, p.League) {
			out[i] = p
			return out
		}
	}
	return append(out, p)
}

// Union adds every pick of other to s.
func (s TeamSet) Union(other TeamSet) TeamSet {
	out := s
	for _, p := range other {
		out = out.Add(p)
	}
	return out
}

// Remove drops p. A placeholder pick removes every pick of its league.
func (s TeamSet) Remove(p TeamPick) TeamSet {
	out := make(TeamSet, 0, len(s))
	for _, existing := range s {
		if p.Placeholder() && strings.EqualFold(existing.League, p.League) {
			continue
		}
		if !p.Placeholder() && existing.key() == p.key() {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// FirstPlaceholder returns the first pick still missing its team.
func (s TeamSet) FirstPlaceholder() (TeamPick, bool) {
	for _, p := range s {
		if p.Placeholder() {
			return p, true
		}
	}
	return TeamPick{}, false
}

// Complete returns only the picks that name a team.
func (s TeamSet) Complete() TeamSet {
	var out TeamSet
	for _, p := range s {
		if !p.Placeholder() {
			out = append(out, p)
		}
	}
	return out
}

// Equal compares as sets.
func (s TeamSet) Equal(o TeamSet) bool {
	a, b := s.keys(), o.keys()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s TeamSet) keys() []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, p := range s {
		k := p.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s TeamSet) String() string {
	parts := make([]string, 0, len(s))
	for _, p := range s {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}
