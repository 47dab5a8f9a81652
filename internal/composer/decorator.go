package composer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sportsreport-bot/internal/dialogue"
)

const (
	maxDecorationLen       = 120
	defaultDecorateTimeout = 3 * time.Second
)

const decoratePrompt = `You write one short, warm, upbeat opening line (max 15 words, at most one emoji) for a WhatsApp reply to a parent who just signed their kid up for, or changed, a daily sports report.
Do not repeat any facts, names of teams, emails or links. Reply with the line only.`

// Decorator prepends a model-written greeting line to confirmation replies.
// The factual text is always kept verbatim; any model failure or a call that
// outlives timeout returns it unchanged.
type Decorator struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDecorator returns a decorator. A non-positive timeout falls back to
// defaultDecorateTimeout.
func NewDecorator(chatModel model.BaseChatModel, timeout time.Duration, logger *slog.Logger) *Decorator {
	if timeout <= 0 {
		timeout = defaultDecorateTimeout
	}
	return &Decorator{chatModel: chatModel, timeout: timeout, logger: logger}
}

// Decorate returns text, possibly with one extra line in front of it.
func (d *Decorator) Decorate(ctx context.Context, a dialogue.Action, text string) string {
	if d == nil || d.chatModel == nil {
		return text
	}
	if a.Kind != dialogue.ActionConfirmSignup && a.Kind != dialogue.ActionEditApplied {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	resp, err := d.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(decoratePrompt),
		schema.UserMessage(string(a.Kind) + " for " + a.ChildName),
	})
	if err != nil {
		d.logger.Warn("reply decoration failed", "error", err)
		return text
	}

	line := strings.TrimSpace(strings.SplitN(resp.Content, "\n", 2)[0])
	if line == "" || len([]rune(line)) > maxDecorationLen {
		return text
	}
	return line + "\n" + text
}
