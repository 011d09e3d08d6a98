// Package hint asks an LLM which candidate question to present next and
// which candidates are redundant. It implements selector.HintProvider;
// the selector validates every suggestion before acting on it.
package hint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/llm"
	"github.com/abhisek/vitalq/internal/selector"
)

// Config tunes provider requests.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the request defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   256,
		Temperature: 0.2,
	}
}

// Provider is an LLM-backed selector.HintProvider.
type Provider struct {
	llm llm.Provider
	cfg Config
}

// New creates a Provider.
func New(p llm.Provider, cfg Config) *Provider {
	return &Provider{llm: p, cfg: cfg}
}

type output struct {
	QuestionID string   `json:"question_id"`
	SkipList   []string `json:"skip_list"`
	Reasoning  string   `json:"reasoning"`
}

// Suggest implements selector.HintProvider.
func (p *Provider) Suggest(ctx context.Context, hc selector.HintContext) (*selector.Hint, error) {
	ctx = llm.WithAssessment(llm.WithPurpose(ctx, "next-question"), hc.AssessmentID)

	msg, err := buildMessage(hc)
	if err != nil {
		return nil, fmt.Errorf("build hint prompt: %w", err)
	}
	resp, err := p.llm.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: msg}},
		Schema:      NextQuestionSchema,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("next-question hint: %w", err)
	}

	var out output
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse hint: %w", err)
	}
	return &selector.Hint{QuestionID: out.QuestionID, SkipList: out.SkipList, Reasoning: out.Reasoning}, nil
}

const systemPrompt = `You help run an adaptive health questionnaire. Questions are grouped into body-system modules and asked one at a time.

Instructions:
- Choose the single most informative question to ask next. Use only IDs from the candidate list.
- List in skip_list any other candidates whose answer is already implied by the recent answers. Leave it empty when unsure.
- Never skip a question marked required.
- Higher scores mean more severe symptoms; higher weights mean more important questions.
- Keep reasoning to one sentence.`

var userTemplate = template.Must(template.New("next-question").Funcs(template.FuncMap{
	"options": optionValues,
}).Parse(`Module: {{.Module.Name}} ({{.Module.ID}})

Recent answers:
{{range .Recent}}- {{.QuestionID}} [{{.ModuleID}}, weight {{.Weight}}]: {{.Text}} => {{.Value}} (score {{.Score}})
{{else}}None
{{end}}
Candidates:
{{range .Candidates}}- {{.ID}} [{{.Type}}, weight {{.Weight}}{{if .Required}}, required{{end}}]: {{.Text}}{{with options .}} Options: {{.}}{{end}}
{{end}}`))

func buildMessage(hc selector.HintContext) (string, error) {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, hc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func optionValues(q catalog.Question) string {
	var buf bytes.Buffer
	for i, o := range q.Options {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(o.Value)
	}
	return buf.String()
}
