// Package classifier performs the secondary AI call (C9) that judges
// whether an error duplicates work already in flight. It fails open: any
// configuration, network, or parse problem yields a verdict of "not a
// duplicate" rather than an error, so a degraded classifier never blocks
// dispatch.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/opsguard/errorpilot/internal/model"
)

// DefaultModel is used when Client is constructed with model "".
const DefaultModel = "claude-3-5-haiku-latest"

const maxTokens = 1024

const requestTimeout = 60 * time.Second

const systemPrompt = `You are an IT manager triaging runtime errors from an AI-agent platform. Given an error report and a list of work already in progress (active repair sessions and open pull requests), decide whether this error is already being addressed.

Respond with a single JSON object, no commentary, with exactly these fields:
{
  "rootCause": "<short description>",
  "category": "<SECURITY|FUNCTIONAL|DATA_INTEGRITY|USER_EXPERIENCE|PERFORMANCE|OTHER>",
  "severity": "<DEBUG|INFO|WARNING|ERROR|CRITICAL>",
  "affectedComponents": ["<component>", ...],
  "suggestedAction": "<short description>",
  "isDuplicateOfActiveWork": <true|false>,
  "matchingActiveWorkId": "<id from the active work list, or empty>",
  "confidence": <0.0-1.0>,
  "reasoning": "<short explanation>"
}`

// Client calls the secondary classifier model.
type Client struct {
	model  string
	client anthropic.Client
	armed  bool
}

// New builds a Client. apiKey "" disables the client: every Classify call
// immediately returns the fail-open verdict without a network call.
// model "" selects DefaultModel.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if apiKey == "" {
		return &Client{model: model}
	}
	return &Client{
		model:  model,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		armed:  true,
	}
}

// failOpen is the verdict returned whenever the classifier cannot reach a
// real answer: configuration missing, transport failure, or an
// unparseable response. It always reports "not a duplicate" so the caller
// proceeds with dispatch.
func failOpen(reason string) *model.RootCauseAnalysis {
	return &model.RootCauseAnalysis{
		Category:                model.CategoryOther,
		Severity:                model.SeverityError,
		IsDuplicateOfActiveWork: false,
		Confidence:              0,
		Reasoning:               reason,
	}
}

// Classify asks the model whether e duplicates any item in activeWork. It
// never returns an error; any failure is folded into a fail-open
// *model.RootCauseAnalysis.
func (c *Client) Classify(ctx context.Context, e model.ErrorReport, activeWork []model.ActiveWork) *model.RootCauseAnalysis {
	if !c.armed {
		return failOpen("classifier disabled: no Anthropic API key configured, defaulting to allow error reporting")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(e, activeWork))),
		},
	})
	if err != nil {
		return failOpen(fmt.Sprintf("classifier call failed, defaulting to allow error reporting: %v", err))
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return failOpen("classifier returned no text content, defaulting to allow error reporting")
	}

	analysis, ok := parseAnalysis(text, activeWork)
	if !ok {
		return failOpen("classifier response was not valid JSON, defaulting to allow error reporting")
	}
	return analysis
}

func buildUserPrompt(e model.ErrorReport, activeWork []model.ActiveWork) string {
	var b strings.Builder
	b.WriteString("Error report:\n")
	fmt.Fprintf(&b, "Category: %s\n", e.Category)
	fmt.Fprintf(&b, "Event: %s\n", e.Event)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.CodeLocation != "" {
		fmt.Fprintf(&b, "Code Location: %s\n", e.CodeLocation)
	}

	b.WriteString("\nActive work:\n")
	if len(activeWork) == 0 {
		b.WriteString("(none)\n")
	}
	for _, w := range activeWork {
		fmt.Fprintf(&b, "- id=%s type=%s title=%q\n", w.ID, w.Type, w.Title)
	}
	return b.String()
}

var validCategories = map[string]model.AnalysisCategory{
	"SECURITY":        model.CategorySecurity,
	"FUNCTIONAL":      model.CategoryFunctional,
	"DATA_INTEGRITY":  model.CategoryDataIntegrity,
	"USER_EXPERIENCE": model.CategoryUX,
	"PERFORMANCE":     model.CategoryPerformance,
	"OTHER":           model.CategoryOther,
}

var validSeverities = map[string]model.Severity{
	"DEBUG":    model.SeverityDebug,
	"INFO":     model.SeverityInfo,
	"WARNING":  model.SeverityWarning,
	"ERROR":    model.SeverityError,
	"CRITICAL": model.SeverityCritical,
}

// parseAnalysis extracts the JSON object from text, tolerating a markdown
// code fence around it, and validates each field against its fixed set,
// falling back per §4.9 of the routing contract rather than rejecting the
// whole response for one bad field.
func parseAnalysis(text string, activeWork []model.ActiveWork) (*model.RootCauseAnalysis, bool) {
	raw := extractJSON(text)
	if raw == "" || !gjson.Valid(raw) {
		return nil, false
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, false
	}

	category, ok := validCategories[strings.ToUpper(parsed.Get("category").String())]
	if !ok {
		category = model.CategoryOther
	}
	severity, ok := validSeverities[strings.ToUpper(parsed.Get("severity").String())]
	if !ok {
		severity = model.SeverityError
	}

	confidence := parsed.Get("confidence").Num
	if !parsed.Get("confidence").Exists() || confidence < 0 || confidence > 1 {
		confidence = 0.5
	}

	var components []string
	for _, c := range parsed.Get("affectedComponents").Array() {
		components = append(components, c.String())
	}

	analysis := &model.RootCauseAnalysis{
		RootCause:               parsed.Get("rootCause").String(),
		Category:                category,
		Severity:                severity,
		AffectedComponents:      components,
		SuggestedAction:         parsed.Get("suggestedAction").String(),
		IsDuplicateOfActiveWork: parsed.Get("isDuplicateOfActiveWork").Bool(),
		Confidence:              confidence,
		Reasoning:               parsed.Get("reasoning").String(),
	}

	matchID := parsed.Get("matchingActiveWorkId").String()
	if analysis.IsDuplicateOfActiveWork && matchID != "" {
		for i := range activeWork {
			if activeWork[i].ID == matchID {
				analysis.MatchingActiveWork = &activeWork[i]
				break
			}
		}
	}

	return analysis, true
}

// extractJSON strips a surrounding ```json ... ``` or ``` ... ``` fence, if
// present, and trims to the outermost { ... } object.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimSuffix(t, "```")
		t = strings.TrimSpace(t)
	}
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return t[start : end+1]
}
