// Package contextmgr implements the Context Manager (C4): the four-layer
// conversation state (permanent / task / summary / session), per-task
// character budgets, and automatic summarisation of old history.
package contextmgr

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// DefaultSummarizeThreshold is how many messages are kept verbatim; when
// history reaches twice this, the overflow is compacted into the summary.
const DefaultSummarizeThreshold = 10

// PermanentContext lives for the whole session and is never truncated.
type PermanentContext struct {
	Workspace   string
	ProjectType string
	Language    string
	Preferences map[string]string
}

// TaskContext is replaced on every request.
type TaskContext struct {
	CurrentFile    string
	FileContent    string
	SelectedCode   string
	ErrorMessage   string
	TerminalOutput string
	FileLanguage   string
}

// SessionMemory accumulates what happened this session, append-only.
type SessionMemory struct {
	FilesCreated      []string
	FilesModified     []string
	ErrorsEncountered []string
	CommandsRun       []string
}

// HistoryMessage is one recorded conversation turn.
type HistoryMessage struct {
	Role      models.Role
	Content   string
	Timestamp time.Time
	TaskType  models.TaskType
}

// Summarizer compacts old history into prose. The model-backed
// implementation lives in the orchestrator package; a nil Summarizer
// makes the manager fall back to the keyword heuristic.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []HistoryMessage) (string, error)
}

// Built is the prompt-ready assembly Build returns.
type Built struct {
	Permanent string
	Task      string
	Summary   string
	Session   string
	Budget    Budget
}

// Manager holds the conversation state for one session. It is safe for
// concurrent use.
type Manager struct {
	mu         sync.Mutex
	permanent  PermanentContext
	task       TaskContext
	session    SessionMemory
	history    []HistoryMessage
	summary    string
	threshold  int
	summarizer Summarizer
	logger     *observability.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithSummarizer installs a model-backed summarizer.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithThreshold overrides the summarize threshold (minimum 2).
func WithThreshold(n int) Option {
	return func(m *Manager) {
		if n >= 2 {
			m.threshold = n
		}
	}
}

// WithLogger installs a logger.
func WithLogger(l *observability.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager rooted at the given workspace.
func NewManager(workspace string, opts ...Option) *Manager {
	m := &Manager{
		permanent: PermanentContext{Workspace: workspace},
		threshold: DefaultSummarizeThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPermanent fills the session-lifetime layer.
func (m *Manager) SetPermanent(projectType, language string, preferences map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanent.ProjectType = projectType
	m.permanent.Language = language
	m.permanent.Preferences = preferences
}

// Workspace returns the workspace path the session is rooted at.
func (m *Manager) Workspace() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permanent.Workspace
}

// SetTaskContext replaces the per-request layer. The file language is
// detected from the current file's extension.
func (m *Manager) SetTaskContext(currentFile, selectedCode, errorMessage, terminalOutput string) {
	m.SetTaskContextWithContent(currentFile, "", selectedCode, errorMessage, terminalOutput)
}

// SetTaskContextWithContent additionally carries the current file's
// content, for clients that send it inline.
func (m *Manager) SetTaskContextWithContent(currentFile, fileContent, selectedCode, errorMessage, terminalOutput string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.task = TaskContext{
		CurrentFile:    currentFile,
		FileContent:    fileContent,
		SelectedCode:   selectedCode,
		ErrorMessage:   errorMessage,
		TerminalOutput: terminalOutput,
		FileLanguage:   DetectLanguage(currentFile),
	}
}

// TaskSnapshot returns a copy of the current task layer, for the
// classifier's minimal context snapshot.
func (m *Manager) TaskSnapshot() TaskContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task
}

// AddMessage appends a turn to history and summarises when history grows
// to twice the threshold: the oldest len-threshold messages are compacted
// into the summary and removed.
func (m *Manager) AddMessage(ctx context.Context, role models.Role, content string, task models.TaskType) {
	m.mu.Lock()
	m.history = append(m.history, HistoryMessage{Role: role, Content: content, Timestamp: time.Now().UTC(), TaskType: task})
	if len(m.history) < 2*m.threshold {
		m.mu.Unlock()
		return
	}
	old := make([]HistoryMessage, len(m.history)-m.threshold)
	copy(old, m.history[:len(old)])
	m.history = append(m.history[:0:0], m.history[len(old):]...)
	session := m.session
	m.mu.Unlock()

	summary := m.summarize(ctx, old, session)

	m.mu.Lock()
	if m.summary != "" {
		m.summary = m.summary + "\n" + summary
	} else {
		m.summary = summary
	}
	m.mu.Unlock()
}

// HistoryLen reports the number of verbatim turns currently held.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Summary returns the compacted prose summary of older turns.
func (m *Manager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// History returns a copy of the verbatim history.
func (m *Manager) History() []HistoryMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryMessage, len(m.history))
	copy(out, m.history)
	return out
}

// RecordFileCreated notes a file the agent created this session.
func (m *Manager) RecordFileCreated(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.FilesCreated = append(m.session.FilesCreated, path)
}

// RecordFileModified notes a file the agent modified this session.
func (m *Manager) RecordFileModified(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.FilesModified = append(m.session.FilesModified, path)
}

// RecordError notes an error encountered this session.
func (m *Manager) RecordError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.ErrorsEncountered = append(m.session.ErrorsEncountered, msg)
}

// RecordCommand notes a command run this session.
func (m *Manager) RecordCommand(cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.CommandsRun = append(m.session.CommandsRun, cmd)
}

// Build assembles the prompt-ready context for a task type, respecting
// its budget. Permanent is rendered first and never truncated; summary,
// session, and task are trimmed oldest-first in that order when the
// total allowance is exceeded.
func (m *Manager) Build(task models.TaskType) Built {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget := BudgetFor(task)
	permanent := renderPermanent(m.permanent)
	summary := truncateHead(renderSummary(m.summary), budget.Summary)
	session := renderSession(m.session)
	taskStr := truncateTail(renderTask(m.task), budget.Task)

	// Enforce the total allowance. Permanent always survives intact.
	over := len(permanent) + len(summary) + len(session) + len(taskStr) - budget.Total
	if over > 0 {
		summary, over = shrinkHead(summary, over)
	}
	if over > 0 {
		session, over = shrinkHead(session, over)
	}
	if over > 0 {
		taskStr, _ = shrinkTail(taskStr, over)
	}

	return Built{Permanent: permanent, Task: taskStr, Summary: summary, Session: session, Budget: budget}
}

func renderPermanent(p PermanentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workspace: %s\n", p.Workspace)
	if p.ProjectType != "" {
		fmt.Fprintf(&b, "Project type: %s\n", p.ProjectType)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", p.Language)
	}
	for _, k := range sortedKeys(p.Preferences) {
		fmt.Fprintf(&b, "Preference %s: %s\n", k, p.Preferences[k])
	}
	return b.String()
}

func renderTask(t TaskContext) string {
	var b strings.Builder
	if t.CurrentFile != "" {
		fmt.Fprintf(&b, "Current file: %s", t.CurrentFile)
		if t.FileLanguage != "" {
			fmt.Fprintf(&b, " (%s)", t.FileLanguage)
		}
		b.WriteString("\n")
	}
	if t.SelectedCode != "" {
		fmt.Fprintf(&b, "Selected code:\n```\n%s\n```\n", t.SelectedCode)
	}
	if t.FileContent != "" {
		fmt.Fprintf(&b, "Current file content:\n```\n%s\n```\n", t.FileContent)
	}
	if t.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error message:\n%s\n", t.ErrorMessage)
	}
	if t.TerminalOutput != "" {
		fmt.Fprintf(&b, "Terminal output:\n%s\n", t.TerminalOutput)
	}
	return b.String()
}

func renderSummary(summary string) string {
	if summary == "" {
		return ""
	}
	return "Earlier in this conversation: " + summary + "\n"
}

// renderSession lists the most recent 5 created and 5 modified files.
func renderSession(s SessionMemory) string {
	var b strings.Builder
	if created := lastN(s.FilesCreated, 5); len(created) > 0 {
		fmt.Fprintf(&b, "Files created this session: %s\n", strings.Join(created, ", "))
	}
	if modified := lastN(s.FilesModified, 5); len(modified) > 0 {
		fmt.Fprintf(&b, "Files modified this session: %s\n", strings.Join(modified, ", "))
	}
	return b.String()
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateHead keeps the newest tail of s within limit.
func truncateHead(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}

// truncateTail keeps the head of s within limit.
func truncateTail(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

func shrinkHead(s string, over int) (string, int) {
	if over >= len(s) {
		return "", over - len(s)
	}
	return s[over:], 0
}

func shrinkTail(s string, over int) (string, int) {
	if over >= len(s) {
		return "", over - len(s)
	}
	return s[:len(s)-over], 0
}

// DetectLanguage maps a filename extension to a language label.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".jsx":
		return "javascript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp", ".cxx":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".sh", ".bash":
		return "shell"
	case ".sql":
		return "sql"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	default:
		return ""
	}
}
