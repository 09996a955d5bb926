package agents

import (
	"context"
	"fmt"
	"strings"

	"nestwise/pkg/llm"
	"nestwise/pkg/logx"
	"nestwise/pkg/profile"
)

// Matcher classifies the free-text goal into one of the known template
// categories.
type Matcher struct {
	client   llm.Client
	registry *profile.Registry
	logger   *logx.Logger
}

// NewMatcher creates a matcher over the given template registry.
func NewMatcher(client llm.Client, registry *profile.Registry) *Matcher {
	return &Matcher{client: client, registry: registry, logger: logx.NewLogger("matcher")}
}

// Match classifies goal and returns the resolved template. Any output that is
// not a known template name is coerced to the default template; only an
// infrastructure failure is returned as an error.
func (a *Matcher) Match(ctx context.Context, goal string) (*profile.Template, error) {
	system := fmt.Sprintf(`You classify a retirement goal into exactly one category.
Categories:
%s
Reply with the category name only, nothing else. If none fits, reply "%s".`,
		a.registry.Descriptions(), profile.DefaultTemplateName)

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(goal),
	})
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("matcher completion: %w", err)
	}

	name := firstWord(resp.Content)
	if _, known := a.registry.Lookup(name); !known {
		a.logger.Warn("unrecognized template %q for goal, falling back to %s", name, profile.DefaultTemplateName)
	}
	return a.registry.Resolve(name), nil
}

// firstWord extracts the leading token of a classification reply, tolerating
// trailing punctuation and chatter.
func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t\n.,:;"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
