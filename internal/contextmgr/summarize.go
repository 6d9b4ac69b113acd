package contextmgr

import (
	"context"
	"fmt"
	"strings"
)

// summarize compacts old messages: through the model-backed summarizer
// when one is installed and reachable, otherwise heuristically.
func (m *Manager) summarize(ctx context.Context, old []HistoryMessage, session SessionMemory) string {
	if m.summarizer != nil {
		summary, err := m.summarizer.Summarize(ctx, old)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil && m.logger != nil {
			m.logger.Warn(ctx, "model summarisation failed, using heuristic", "error", err.Error())
		}
	}
	return heuristicSummary(old, session)
}

// heuristicSummary classifies each message by keyword and emits a single
// line of aggregated counts plus recent file activity.
func heuristicSummary(old []HistoryMessage, session SessionMemory) string {
	var generation, debugging, explanation, testing, other int
	for _, msg := range old {
		content := strings.ToLower(msg.Content)
		switch {
		case containsAny(content, "create", "generate", "write", "implement", "add "):
			generation++
		case containsAny(content, "error", "fix", "bug", "fail", "traceback", "exception"):
			debugging++
		case containsAny(content, "explain", "what is", "what does", "how does", "why"):
			explanation++
		case containsAny(content, "test", "coverage", "assert"):
			testing++
		default:
			other++
		}
	}

	var parts []string
	if generation > 0 {
		parts = append(parts, fmt.Sprintf("%d generation exchanges", generation))
	}
	if debugging > 0 {
		parts = append(parts, fmt.Sprintf("%d debugging exchanges", debugging))
	}
	if explanation > 0 {
		parts = append(parts, fmt.Sprintf("%d explanation exchanges", explanation))
	}
	if testing > 0 {
		parts = append(parts, fmt.Sprintf("%d testing exchanges", testing))
	}
	if other > 0 {
		parts = append(parts, fmt.Sprintf("%d other exchanges", other))
	}
	line := fmt.Sprintf("Compacted %d earlier messages", len(old))
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	}
	if recent := lastN(append(append([]string{}, session.FilesCreated...), session.FilesModified...), 5); len(recent) > 0 {
		line += ". Recent file activity: " + strings.Join(recent, ", ")
	}
	return line + "."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// SummarizePrompt is the fixed instruction handed to the fast model when
// summarising old conversation turns.
const SummarizePrompt = `Summarize the following conversation turns between a developer and a coding assistant in at most 5 sentences. Preserve file names, commands, error messages, and decisions. Output only the summary.`

// RenderForSummary formats messages for the summarisation prompt.
func RenderForSummary(msgs []HistoryMessage) string {
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
