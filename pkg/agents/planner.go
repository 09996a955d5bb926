package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
	"nestwise/pkg/logx"
	"nestwise/pkg/profile"
	"nestwise/pkg/retrieval"
	"nestwise/pkg/tools"
)

// SearchToolName is the retrieval tool bound during the planner's query phase.
const SearchToolName = "search_corpus"

const unknownValue = "unknown"

const plannerQueryPrompt = `You prepare to write a retirement plan. Based on the user's profile below,
decide what supporting evidence you need from the reference document corpus.
Call the search_corpus tool for each query, up to %d queries. If the profile
needs no supporting evidence, reply with a short acknowledgement instead of
calling the tool.`

const plannerSynthesisPrompt = `You are a retirement planning expert. Using the user's profile and the
retrieved reference excerpts, produce a retirement plan as a JSON object with
exactly these keys:
  "investment_strategy": {"asset_allocation": {category: percentage string}, "justification": string}
  "savings_plan": [{"year": string, "contribution": string, "notes": string}]
  "risk_assessment": string
  "milestones": [{"age": string, "target": string}]
  "citations": [{"fact": string, "source": string, "page": number}]
Every numeric or regulatory claim must cite an excerpt by source and page.
Use the string "unknown" for any value the profile and excerpts do not
support. Never invent figures. Always include every key, even when empty.`

// Plan is the structured synthesis output handed to the downstream formatter.
type Plan struct {
	InvestmentStrategy InvestmentStrategy `json:"investment_strategy"`
	SavingsPlan        []SavingsYear      `json:"savings_plan"`
	RiskAssessment     string             `json:"risk_assessment"`
	Milestones         []Milestone        `json:"milestones"`
	Citations          []Citation         `json:"citations"`
}

// InvestmentStrategy is an asset allocation with its justification.
type InvestmentStrategy struct {
	AssetAllocation map[string]string `json:"asset_allocation"`
	Justification   string            `json:"justification"`
}

// SavingsYear is one row of the year-by-year savings plan.
type SavingsYear struct {
	Year         string `json:"year"`
	Contribution string `json:"contribution"`
	Notes        string `json:"notes"`
}

// Milestone is an age/target pair on the road to retirement.
type Milestone struct {
	Age    string `json:"age"`
	Target string `json:"target"`
}

// Citation ties a claim in the plan to a corpus source and page.
type Citation struct {
	Fact   string `json:"fact"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// CorpusSearchTool exposes the retrieval index as a callable tool for the
// planner's query phase. Results carry source and page provenance.
type CorpusSearchTool struct {
	index *retrieval.Index
	topK  int
}

// NewCorpusSearchTool creates the search tool over the read-only index.
func NewCorpusSearchTool(index *retrieval.Index, topK int) *CorpusSearchTool {
	return &CorpusSearchTool{index: index, topK: topK}
}

// Definition implements tools.Tool.
func (t *CorpusSearchTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search the retirement reference corpus for supporting evidence.",
		InputSchema: tools.InputSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "A focused search query."},
			},
			Required: []string{"query"},
		},
	}
}

// Exec implements tools.Tool: one nearest-neighbor search, results rendered
// as annotated excerpts, one per line. An empty result is not an error.
func (t *CorpusSearchTool) Exec(ctx context.Context, args map[string]any) (*tools.ExecResult, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return &tools.ExecResult{}, nil
	}

	chunks, err := t.index.Search(ctx, query, t.topK)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var b strings.Builder
	for i := range chunks {
		chunk := &chunks[i]
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s p.%d] %s", chunk.Source, chunk.Page, chunk.Text)
	}
	return &tools.ExecResult{Content: b.String()}, nil
}

// Planner synthesizes a cited plan from the profile and retrieved evidence.
// Each invocation is a strict two-phase pipeline: one query round against the
// corpus index, then one synthesis call. There is no re-querying.
type Planner struct {
	client     llm.Client
	search     *CorpusSearchTool
	logger     *logx.Logger
	maxQueries int
}

// NewPlanner creates a planner over the read-only corpus index.
func NewPlanner(client llm.Client, index *retrieval.Index, maxQueries, topK int) *Planner {
	return &Planner{
		client:     client,
		search:     NewCorpusSearchTool(index, topK),
		logger:     logx.NewLogger("planner"),
		maxQueries: maxQueries,
	}
}

// Plan runs the query, retrieve and synthesize phases and returns the parsed
// plan plus its normalized JSON encoding. Empty retrieval degrades to
// synthesis with no excerpts; a plan that does not parse is a malformed
// response error.
func (a *Planner) Plan(ctx context.Context, values profile.Values) (*Plan, string, error) {
	queries, err := a.queryPhase(ctx, values)
	if err != nil {
		return nil, "", err
	}

	excerpts := a.retrievePhase(ctx, queries)
	return a.synthesizePhase(ctx, values, excerpts)
}

// queryPhase asks the model which corpus queries it wants, bounded to
// maxQueries. No tool calls means synthesis proceeds with empty context.
func (a *Planner) queryPhase(ctx context.Context, values profile.Values) ([]string, error) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(fmt.Sprintf(plannerQueryPrompt, a.maxQueries)),
		llm.NewUserMessage("User profile:\n" + renderProfile(values)),
	})
	req.Tools = []tools.ToolDefinition{a.search.Definition()}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planner query phase: %w", err)
	}

	var queries []string
	for _, call := range resp.ToolCalls {
		if call.Name != SearchToolName {
			continue
		}
		query, _ := call.Parameters["query"].(string)
		if strings.TrimSpace(query) == "" {
			continue
		}
		queries = append(queries, query)
		if len(queries) == a.maxQueries {
			break
		}
	}
	a.logger.Debug("query phase produced %d queries", len(queries))
	return queries, nil
}

// retrievePhase executes the search tool for each query and concatenates the
// results in production order. Retrieval failures and empty results degrade
// to fewer excerpts, never to a turn failure.
func (a *Planner) retrievePhase(ctx context.Context, queries []string) []string {
	var excerpts []string
	for _, query := range queries {
		result, err := a.search.Exec(ctx, map[string]any{"query": query})
		if err != nil {
			a.logger.Warn("search for %q failed: %v", query, err)
			continue
		}
		if result.Content != "" {
			excerpts = append(excerpts, result.Content)
		}
	}
	return excerpts
}

func (a *Planner) synthesizePhase(ctx context.Context, values profile.Values, excerpts []string) (*Plan, string, error) {
	var task strings.Builder
	task.WriteString("User profile:\n")
	task.WriteString(renderProfile(values))
	task.WriteString("\n\nReference excerpts:\n")
	if len(excerpts) == 0 {
		task.WriteString("(none retrieved; mark unsupported values \"unknown\" and leave citations empty)")
	} else {
		task.WriteString(strings.Join(excerpts, "\n"))
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(plannerSynthesisPrompt),
		llm.NewUserMessage(task.String()),
	})
	req.ResponseFormat = llm.FormatJSON

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("planner synthesis: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &plan); err != nil {
		return nil, "", llmerrors.New(llmerrors.ErrorTypeMalformedResponse,
			fmt.Errorf("plan does not match schema: %w", err))
	}
	normalize(&plan)

	raw, err := json.Marshal(&plan)
	if err != nil {
		return nil, "", fmt.Errorf("encode plan: %w", err)
	}
	return &plan, string(raw), nil
}

// normalize fills schema-required fields the model left absent so the output
// always validates: empty collections stay present and unsupported scalars
// read "unknown".
func normalize(plan *Plan) {
	if plan.InvestmentStrategy.AssetAllocation == nil {
		plan.InvestmentStrategy.AssetAllocation = map[string]string{}
	}
	if plan.InvestmentStrategy.Justification == "" {
		plan.InvestmentStrategy.Justification = unknownValue
	}
	if plan.SavingsPlan == nil {
		plan.SavingsPlan = []SavingsYear{}
	}
	if plan.RiskAssessment == "" {
		plan.RiskAssessment = unknownValue
	}
	if plan.Milestones == nil {
		plan.Milestones = []Milestone{}
	}
	if plan.Citations == nil {
		plan.Citations = []Citation{}
	}
}

// renderProfile writes the extracted values in sorted field order so prompts
// are stable across runs.
func renderProfile(values profile.Values) string {
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, "- %s: %s\n", field, values[field])
	}
	if b.Len() == 0 {
		b.WriteString("(empty)\n")
	}
	return b.String()
}
