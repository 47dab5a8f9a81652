// Package composer renders dialogue actions as WhatsApp replies.
package composer

import (
	"fmt"
	"net/url"
	"strings"

	"sportsreport-bot/internal/dialogue"
	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
	"sportsreport-bot/internal/validator"
)

type Composer struct {
	catalog     *sports.Catalog
	settingsURL string
}

func New(catalog *sports.Catalog, settingsURL string) *Composer {
	return &Composer{catalog: catalog, settingsURL: settingsURL}
}

// EditLink is the self-service settings page for a subscriber.
func (c *Composer) EditLink(publicID string) string {
	if publicID == "" {
		return ""
	}
	return c.settingsURL + "?id=" + url.QueryEscape(publicID)
}

// Compose returns the reply text for a. The same action always yields the
// same text.
func (c *Composer) Compose(a dialogue.Action) string {
	child := a.ChildName
	if child == "" {
		child = "your child"
	}

	switch a.Kind {
	case dialogue.ActionAskField:
		return c.askField(a, child)

	case dialogue.ActionConfirmSignup:
		var b strings.Builder
		fmt.Fprintf(&b, "You're all set! %s's daily sports report will go to %s.\n%s", child, a.Fields.Email, c.teamLines(a.Fields.FavoriteTeams))
		if a.FollowUp {
			b.WriteString("\nWe don't cover every league you mentioned yet, so someone from our team will follow up.")
		}
		if link := c.EditLink(a.SubscriberID); link != "" {
			fmt.Fprintf(&b, "\n\n📎 To review or change the report anytime, use this link: %s", link)
		}
		return b.String()

	case dialogue.ActionEditApplied:
		var b strings.Builder
		fmt.Fprintf(&b, "Done! %s's report now covers:\n%s", child, c.teamLines(a.Fields.FavoriteTeams))
		fmt.Fprintf(&b, "\nIt goes to %s.", a.Fields.Email)
		if a.FollowUp {
			b.WriteString("\nSome of those leagues aren't covered yet; we'll follow up.")
		}
		if link := c.EditLink(a.SubscriberID); link != "" {
			fmt.Fprintf(&b, "\n\n📎 Settings: %s", link)
		}
		return b.String()

	case dialogue.ActionNoChange:
		return fmt.Sprintf("%s's report already has that, nothing to change. 👍", child)

	case dialogue.ActionInvalidEdit:
		if a.Issue != nil && a.Issue.Field == models.FieldFavoriteTeams {
			return fmt.Sprintf("%s's report needs at least one team, so I can't remove that one. Want to add a different team first?", child)
		}
		return fmt.Sprintf("I couldn't make that change to %s's report: %s. Could you try again?", child, reasonText(a.Issue))

	case dialogue.ActionAskEditDetails:
		return fmt.Sprintf("Sure! What would you like to change for %s? You can add or remove teams or leagues, or update the email.", child)

	case dialogue.ActionAlreadySubscribed:
		return fmt.Sprintf("%s already gets the daily report! 🏀 What would you like to change? You can add or remove teams or update the email.", child)

	case dialogue.ActionAskWhichChild:
		return fmt.Sprintf("Which report should I change: %s?", joinOr(a.Children))

	case dialogue.ActionUnknownChild:
		return fmt.Sprintf("I couldn't find a report for %s. The reports on this number are for %s. Which one did you mean? Or say \"sign up %s\" to start a new one.", child, joinAnd(a.Children), child)

	case dialogue.ActionNoSubscription:
		return "I couldn't find a report linked to this number yet. Want to sign someone up? Tell me the child's name and favorite team."

	case dialogue.ActionAllSet:
		return fmt.Sprintf("%s is all set! To make a change, just tell me, for example \"add La Liga to %s's report\".", child, child)

	case dialogue.ActionClarify:
		return c.clarify(a, child)

	case dialogue.ActionRedirect:
		return "Hi! 👋 I can sign your kids up for a free daily printable sports report, or change an existing one. Who's the report for, and which teams do they love?"

	case dialogue.ActionApology:
		return "Hmm, something went wrong saving that. Could you try again in a minute?"
	}
	return "Sorry, I didn't catch that. Could you say it another way?"
}

func (c *Composer) askField(a dialogue.Action, child string) string {
	reason := ""
	if a.Issue != nil && a.Issue.Reason != validator.ReasonMissing && a.Issue.Reason != validator.ReasonTeamMissing {
		reason = "Hmm, " + reasonText(a.Issue) + ". "
	}

	switch a.Field {
	case models.FieldChildName:
		return reason + "Who's the report for? What's your child's first name?"
	case models.FieldFavoriteTeams:
		if a.League != "" {
			return reason + fmt.Sprintf("Which %s team does %s follow?", c.catalog.DisplayLeague(a.League), child)
		}
		return reason + fmt.Sprintf("Great! Which teams does %s love? We cover the NBA, MLS and European soccer.", child)
	case models.FieldEmail:
		if reason == "" {
			reason = "Perfect! "
		}
		return reason + fmt.Sprintf("What email should we send %s's report to?", child)
	case models.FieldRelationship:
		return reason + fmt.Sprintf("How are you related to %s?", child)
	}
	return reason + "Could you tell me a bit more?"
}

func (c *Composer) clarify(a dialogue.Action, child string) string {
	const sorry = "Sorry, I didn't quite catch that. "
	switch {
	case a.Field != "":
		return sorry + c.askField(dialogue.Action{Field: a.Field, League: a.League}, child)
	case a.Editing:
		return sorry + fmt.Sprintf("What would you like to change for %s?", child)
	}
	return sorry + "To sign up, tell me your child's name and favorite team. To change a report, say something like \"add La Liga to Sofia's report\"."
}

func (c *Composer) teamLines(teams models.TeamSet) string {
	var b strings.Builder
	for _, p := range teams {
		league := c.catalog.DisplayLeague(p.League)
		if p.Placeholder() {
			fmt.Fprintf(&b, "• %s\n", league)
			continue
		}
		fmt.Fprintf(&b, "• %s (%s)\n", p.Team, league)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func reasonText(issue *validator.Issue) string {
	if issue == nil {
		return "something looks off"
	}
	switch {
	case issue.Field == models.FieldEmail && issue.Reason == validator.ReasonMalformed:
		return "that email doesn't look right"
	case issue.Reason == validator.ReasonTooLong:
		return "that " + fieldText(issue.Field) + " is too long"
	case issue.Reason == validator.ReasonMissing:
		return "the " + fieldText(issue.Field) + " is missing"
	}
	return "that " + fieldText(issue.Field) + " doesn't look right"
}

func fieldText(f models.Field) string {
	return strings.ReplaceAll(string(f), "_", " ")
}

func joinOr(names []string) string  { return join(names, "or") }
func joinAnd(names []string) string { return join(names, "and") }

func join(names []string, word string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " " + word + " " + names[len(names)-1]
}
