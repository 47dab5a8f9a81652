package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
)

const (
	extractToolName        = "extract_intent"
	extractToolDescription = "Record what the parent's WhatsApp message asks for: a new signup, an edit to an existing report, an answer to the last question, or neither."
)

type extractedTeam struct {
	League string `json:"league" jsonschema:"required,description=League code from the supported list or the league name as written"`
	Team   string `json:"team,omitempty" jsonschema:"description=Official full team name; empty when only the league was mentioned"`
}

type extractedChange struct {
	Field string          `json:"field" jsonschema:"required,enum=child_name,enum=relationship,enum=favorite_teams,enum=email"`
	Op    string          `json:"op" jsonschema:"required,enum=set,enum=add,enum=remove,description=add/remove apply to favorite_teams only"`
	Value string          `json:"value,omitempty" jsonschema:"description=New value for child_name or relationship or email"`
	Teams []extractedTeam `json:"teams,omitempty"`
}

type extraction struct {
	Kind         string            `json:"kind" jsonschema:"required,enum=new_signup,enum=edit_request,enum=field_answer,enum=ambiguous,enum=unrelated"`
	ChildName    string            `json:"child_name,omitempty" jsonschema:"description=Child's first name for new_signup; the child being edited for edit_request"`
	Relationship string            `json:"relationship,omitempty" jsonschema:"description=How the child relates to the sender, e.g. daughter"`
	Email        string            `json:"email,omitempty" jsonschema:"description=Email exactly as written even if it looks invalid"`
	Teams        []extractedTeam   `json:"teams,omitempty"`
	Field        string            `json:"field,omitempty" jsonschema:"enum=child_name,enum=relationship,enum=favorite_teams,enum=email,description=Field answered for field_answer"`
	Value        string            `json:"value,omitempty" jsonschema:"description=Answer value for scalar fields"`
	Changes      []extractedChange `json:"changes,omitempty"`
	Reason       string            `json:"reason,omitempty" jsonschema:"description=Why the message is ambiguous"`
}

// ModelExtractor asks a tool-calling chat model to classify the message. The
// model is forced to call extract_intent and its arguments are decoded into a
// typed struct.
type ModelExtractor struct {
	chatModel model.ToolCallingChatModel
	toolInfo  *schema.ToolInfo
	catalog   *sports.Catalog
}

func NewModelExtractor(chatModel model.ToolCallingChatModel, catalog *sports.Catalog) (*ModelExtractor, error) {
	toolInfo, err := utils.GoStruct2ToolInfo[extraction](extractToolName, extractToolDescription)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &ModelExtractor{chatModel: chatModel, toolInfo: toolInfo, catalog: catalog}, nil
}

func (m *ModelExtractor) Extract(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	messages, err := m.prompt(text, snap)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	resp, err := m.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{m.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, m.toolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}

	var args string
	for _, tc := range resp.ToolCalls {
		if tc.Function.Name == extractToolName {
			args = tc.Function.Arguments
			break
		}
	}
	if args == "" {
		return nil, fmt.Errorf("model did not call %s tool: %s", extractToolName, resp.Content)
	}
	slog.Debug("intent tool call", "args", args)

	var out extraction
	if err := sonic.UnmarshalString(args, &out); err != nil {
		return nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}
	return out.intent()
}

func (m *ModelExtractor) prompt(text string, snap Snapshot) ([]*schema.Message, error) {
	var leagues []string
	for _, l := range m.catalog.Leagues() {
		leagues = append(leagues, l.Code+" ("+l.Name+")")
	}
	snapJSON, err := sonic.MarshalString(snap)
	if err != nil {
		return nil, err
	}

	system := fmt.Sprintf(`You classify WhatsApp messages for a service that emails kids a daily printable sports report.
You MUST call the tool %s with arguments matching its schema. Never answer in plain text.

Kinds:
- new_signup: the parent wants a report for a child. Fill child_name, relationship, email and teams with whatever is given.
- edit_request: the parent wants to change an existing child's report. child_name is the child being edited. Use op=add/remove for teams and op=set for other fields.
- field_answer: a reply to the question the bot asked last (see last_question and pending_league in the context).
- ambiguous: it is about signups or edits but you cannot tell what to do.
- unrelated: greetings, thanks, or anything else.

Supported leagues: %s.
Use the official full team name ("Boston Celtics", not "Celtics"). When only a league is named, leave team empty.
Copy emails exactly as written, even if malformed.

Conversation context: %s`, extractToolName, strings.Join(leagues, ", "), snapJSON)

	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(text),
	}, nil
}

func (e extraction) intent() (Intent, error) {
	switch e.Kind {
	case "new_signup":
		return NewSignup{
			ChildName:    e.ChildName,
			Relationship: e.Relationship,
			Email:        e.Email,
			Teams:        teamSet(e.Teams),
		}, nil
	case "edit_request":
		req := EditRequest{TargetChild: e.ChildName}
		for _, c := range e.Changes {
			req.Changes = append(req.Changes, Change{
				Field: models.Field(c.Field),
				Op:    Op(c.Op),
				Value: c.Value,
				Teams: teamSet(c.Teams),
			})
		}
		return req, nil
	case "field_answer":
		return FieldAnswer{Field: models.Field(e.Field), Value: e.Value, Teams: teamSet(e.Teams)}, nil
	case "ambiguous":
		reason := e.Reason
		if reason == "" {
			reason = ReasonUnrecognized
		}
		return Ambiguous{Reason: reason}, nil
	case "unrelated":
		return Unrelated{}, nil
	}
	return nil, fmt.Errorf("unknown intent kind %q", e.Kind)
}

func teamSet(ts []extractedTeam) models.TeamSet {
	var out models.TeamSet
	for _, t := range ts {
		out = out.Add(models.TeamPick{League: t.League, Team: t.Team})
	}
	return out
}
