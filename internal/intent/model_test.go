package intent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sportsreport-bot/internal/models"
	"sportsreport-bot/internal/sports"
)

// fakeChatModel answers every Generate call with a single tool call.
type fakeChatModel struct {
	args     string
	content  string
	err      error
	delay    time.Duration
	messages []*schema.Message
	opts     int
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = in
	f.opts = len(opts)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	msg := &schema.Message{Role: schema.Assistant, Content: f.content}
	if f.args != "" {
		msg.ToolCalls = []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: extractToolName, Arguments: f.args},
		}}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestModelExtractor(t *testing.T) {
	cases := []struct {
		name string
		args string
		want Intent
	}{
		{
			name: "signup",
			args: `{"kind":"new_signup","child_name":"Sofia","relationship":"daughter","teams":[{"league":"NBA","team":"Boston Celtics"}]}`,
			want: NewSignup{ChildName: "Sofia", Relationship: "daughter", Teams: models.TeamSet{{League: "NBA", Team: "Boston Celtics"}}},
		},
		{
			name: "edit",
			args: `{"kind":"edit_request","child_name":"Sofia","changes":[{"field":"favorite_teams","op":"add","teams":[{"league":"EPL"}]}]}`,
			want: EditRequest{TargetChild: "Sofia", Changes: []Change{{Field: models.FieldFavoriteTeams, Op: OpAdd, Teams: models.TeamSet{{League: "EPL"}}}}},
		},
		{
			name: "answer",
			args: `{"kind":"field_answer","field":"email","value":"maria@gmail.com"}`,
			want: FieldAnswer{Field: models.FieldEmail, Value: "maria@gmail.com"},
		},
		{
			name: "ambiguous without reason",
			args: `{"kind":"ambiguous"}`,
			want: Ambiguous{Reason: ReasonUnrecognized},
		},
		{
			name: "unrelated",
			args: `{"kind":"unrelated"}`,
			want: Unrelated{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeChatModel{args: tc.args}
			m, err := NewModelExtractor(fake, sports.Default())
			if err != nil {
				t.Fatalf("NewModelExtractor: %v", err)
			}
			got, err := m.Extract(context.Background(), "whatever", Snapshot{Phase: models.PhaseAwaitingEmail})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
			if fake.opts != 2 {
				t.Fatalf("expected tools and tool choice options, got %d options", fake.opts)
			}
			if len(fake.messages) != 2 || !strings.Contains(fake.messages[0].Content, "AWAITING_EMAIL") {
				t.Fatalf("prompt is missing the conversation context")
			}
		})
	}
}

func TestModelExtractorErrors(t *testing.T) {
	cases := []struct {
		name string
		fake *fakeChatModel
	}{
		{name: "model error", fake: &fakeChatModel{err: errors.New("boom")}},
		{name: "no tool call", fake: &fakeChatModel{content: "Hi there!"}},
		{name: "bad arguments", fake: &fakeChatModel{args: `{"kind":`}},
		{name: "unknown kind", fake: &fakeChatModel{args: `{"kind":"unsubscribe"}`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewModelExtractor(tc.fake, sports.Default())
			if err != nil {
				t.Fatalf("NewModelExtractor: %v", err)
			}
			if _, err := m.Extract(context.Background(), "hello", Snapshot{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
