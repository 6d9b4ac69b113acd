package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// classificationPrompt instructs the classifier model. The response must
// be a single JSON object; everything else around it is tolerated by the
// parser.
const classificationPrompt = `You classify developer requests for a coding assistant. Respond with a JSON object only:
{
  "task_type": one of [chat, code_explain_simple, code_explain_complex, code_generation, code_generation_multi, bug_fixing, refactor, architecture, test_generation, documentation, research],
  "confidence": 0.0-1.0,
  "requires_file_context": bool,
  "requires_terminal": bool,
  "estimated_complexity": "low" | "medium" | "high",
  "reasoning": short string
}`

// BuildClassificationInput renders the user turn for the classifier from
// the query and a minimal context snapshot.
func BuildClassificationInput(query string, task contextmgr.TaskContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", query)
	if task.CurrentFile != "" {
		fmt.Fprintf(&b, "Open file: %s\n", task.CurrentFile)
	}
	if task.SelectedCode != "" {
		b.WriteString("The user has code selected.\n")
	}
	if task.ErrorMessage != "" {
		b.WriteString("There is an active error message.\n")
	}
	return b.String()
}

// Classify derives a TaskClassification for the query: through the
// designated classifier model when reachable, otherwise by keyword rules.
// The returned method is "model" or "keyword".
func (o *Orchestrator) Classify(ctx context.Context, query string) (*models.TaskClassification, string) {
	res, ok := o.router.Classifier(ctx)
	if !ok {
		return KeywordClassify(query), "keyword"
	}

	req := &providers.CompletionRequest{
		System:    classificationPrompt,
		Messages:  []models.Message{{Role: models.RoleUser, Content: BuildClassificationInput(query, o.contextMgr.TaskSnapshot())}},
		MaxTokens: 400,
	}
	ch, err := res.Model.Complete(ctx, req)
	if err != nil {
		return KeywordClassify(query), "keyword"
	}
	completion, err := providers.Collect(ctx, ch)
	if err != nil {
		return KeywordClassify(query), "keyword"
	}

	classification, err := ParseClassification(completion.Text)
	if err != nil {
		if o.logger != nil {
			o.logger.Debug(ctx, "classifier output unparseable, using keywords", "error", err.Error())
		}
		return KeywordClassify(query), "keyword"
	}
	return classification, "model"
}

var (
	thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ParseClassification extracts a TaskClassification from model output.
// It tolerates a leading <think>...</think> block, triple-backtick
// fences, and prose around the object; the first balanced top-level
// {...} is decoded. Unknown task types are rejected.
func ParseClassification(raw string) (*models.TaskClassification, error) {
	cleaned := thinkRe.ReplaceAllString(raw, "")
	if m := fenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}

	obj, err := extractJSONObject(cleaned)
	if err != nil {
		return nil, err
	}

	var c models.TaskClassification
	if err := json.Unmarshal([]byte(obj), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if !models.ValidTaskTypes[c.TaskType] {
		return nil, fmt.Errorf("unknown task type %q", c.TaskType)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		c.Confidence = 0.5
	}
	switch c.EstimatedComplexity {
	case models.ComplexityLow, models.ComplexityMedium, models.ComplexityHigh:
	default:
		c.EstimatedComplexity = models.ComplexityMedium
	}
	return &c, nil
}

// extractJSONObject returns the first balanced top-level brace group,
// skipping braces inside JSON strings.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object")
}

// keywordRule pairs a resulting task type with its trigger substrings.
// Rules are evaluated in precedence order: bug fixing wins over
// generation, generation over explanation, and so on.
type keywordRule struct {
	taskType models.TaskType
	keywords []string
}

var keywordRules = []keywordRule{
	{models.TaskBugFixing, []string{"fix", "bug", "error", "broken", "crash", "exception", "traceback", "fails", "failing", "nameerror", "typeerror", "segfault", "not working"}},
	{models.TaskCodeGenerationMulti, []string{"project", "app from scratch", "application with", "scaffold", "boilerplate", "multiple files", "full stack"}},
	{models.TaskCodeGeneration, []string{"create", "generate", "write a", "write me", "implement", "add a", "build a", "make a", "new file"}},
	{models.TaskCodeExplainSimple, []string{"explain", "what does", "what is this", "how does", "understand", "walk me through"}},
	{models.TaskRefactor, []string{"refactor", "clean up", "cleanup", "simplify", "rename", "restructure", "optimize"}},
	{models.TaskTestGeneration, []string{"test", "unit test", "coverage", "pytest", "go test"}},
}

// KeywordClassify is the rule-based fallback classifier.
func KeywordClassify(query string) *models.TaskClassification {
	lowered := strings.ToLower(query)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return &models.TaskClassification{
					TaskType:            rule.taskType,
					Confidence:          0.6,
					RequiresFileContext: rule.taskType != models.TaskChat,
					EstimatedComplexity: models.ComplexityMedium,
					Reasoning:           fmt.Sprintf("matched keyword %q", kw),
				}
			}
		}
	}
	return &models.TaskClassification{
		TaskType:            models.TaskChat,
		Confidence:          0.4,
		EstimatedComplexity: models.ComplexityLow,
		Reasoning:           "no classification keywords matched",
	}
}
