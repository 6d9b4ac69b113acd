package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
	"github.com/ai-innovation-art/quasar/internal/tools/files"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Config scopes the shell tools to a workspace and a shared terminal
// buffer.
type Config struct {
	Workspace string
	Buffer    *Buffer
}

func mustSchema(v map[string]any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"object"}`)
	}
	return payload
}

// RunCommandTool implements run_terminal_command.
type RunCommandTool struct {
	runner Runner
	buffer *Buffer
}

// NewRunCommandTool creates a run_terminal_command tool.
func NewRunCommandTool(cfg Config) *RunCommandTool {
	return &RunCommandTool{runner: Runner{Workspace: cfg.Workspace}, buffer: cfg.Buffer}
}

func (t *RunCommandTool) Name() string { return "run_terminal_command" }

func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace and return stdout, stderr, and the exit code."
}

func (t *RunCommandTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Shell command to execute."},
		},
		"required": []string{"command"},
	})
}

func (t *RunCommandTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return tools.ErrorResult("", "command is required"), nil
	}
	if reason := CheckBlocked(input.Command); reason != "" {
		return tools.ErrorResult(models.ErrDangerousCommand, reason), nil
	}

	result := t.runner.Run(ctx, input.Command)
	if t.buffer != nil {
		t.buffer.Append(input.Command, result.Stdout, result.Stderr)
	}
	return tools.JSONResult(result), nil
}

// RunScriptTool implements run_script_file: executes a script inside the
// workspace with its language's interpreter.
type RunScriptTool struct {
	runner   Runner
	resolver files.Resolver
	buffer   *Buffer
}

// NewRunScriptTool creates a run_script_file tool.
func NewRunScriptTool(cfg Config) *RunScriptTool {
	return &RunScriptTool{
		runner:   Runner{Workspace: cfg.Workspace},
		resolver: files.Resolver{Root: cfg.Workspace},
		buffer:   cfg.Buffer,
	}
}

func (t *RunScriptTool) Name() string { return "run_script_file" }

func (t *RunScriptTool) Description() string {
	return "Run a script file from the workspace with the interpreter matching its extension."
}

func (t *RunScriptTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Script path relative to the workspace root."},
			"args": map[string]any{"type": "string", "description": "Arguments appended to the invocation."},
		},
		"required": []string{"path"},
	})
}

func (t *RunScriptTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Path string `json:"path"`
		Args string `json:"args"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if _, err := t.resolver.Resolve(input.Path); err != nil {
		return tools.ErrorResult(models.ErrPathSandboxViolation, err.Error()), nil
	}

	interpreter, ok := interpreterFor(input.Path)
	if !ok {
		return tools.ErrorResult("", fmt.Sprintf("no interpreter known for %s", input.Path)), nil
	}

	command := interpreter + " " + shellQuote(input.Path)
	if strings.TrimSpace(input.Args) != "" {
		command += " " + input.Args
	}
	result := t.runner.Run(ctx, command)
	if t.buffer != nil {
		t.buffer.Append(command, result.Stdout, result.Stderr)
	}
	return tools.JSONResult(result), nil
}

func interpreterFor(path string) (string, bool) {
	switch {
	case strings.HasSuffix(path, ".py"):
		return "python3", true
	case strings.HasSuffix(path, ".js"):
		return "node", true
	case strings.HasSuffix(path, ".ts"):
		return "npx tsx", true
	case strings.HasSuffix(path, ".sh"):
		return "sh", true
	case strings.HasSuffix(path, ".rb"):
		return "ruby", true
	case strings.HasSuffix(path, ".go"):
		return "go run", true
	default:
		return "", false
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// packageManagers are the allowed run_package_command prefixes.
var packageManagers = map[string]bool{
	"pip": true, "pip3": true, "npm": true, "yarn": true, "pnpm": true,
	"go": true, "cargo": true, "bundle": true, "uv": true, "poetry": true,
}

// RunPackageTool implements run_package_command: package-manager
// invocations, which the executor runs under the extended timeout.
type RunPackageTool struct {
	runner Runner
	buffer *Buffer
}

// NewRunPackageTool creates a run_package_command tool.
func NewRunPackageTool(cfg Config) *RunPackageTool {
	return &RunPackageTool{runner: Runner{Workspace: cfg.Workspace}, buffer: cfg.Buffer}
}

func (t *RunPackageTool) Name() string { return "run_package_command" }

func (t *RunPackageTool) Description() string {
	return "Run a package-manager command (pip, npm, go, cargo, ...). Allowed a longer timeout than plain commands."
}

func (t *RunPackageTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Package-manager command, e.g. \"pip install requests\"."},
		},
		"required": []string{"command"},
	})
}

func (t *RunPackageTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	fields := strings.Fields(input.Command)
	if len(fields) == 0 {
		return tools.ErrorResult("", "command is required"), nil
	}
	if !packageManagers[fields[0]] {
		return tools.ErrorResult("", fmt.Sprintf("%q is not a recognised package manager; use run_terminal_command for other commands", fields[0])), nil
	}
	if reason := CheckBlocked(input.Command); reason != "" {
		return tools.ErrorResult(models.ErrDangerousCommand, reason), nil
	}

	result := t.runner.Run(ctx, input.Command)
	if t.buffer != nil {
		t.buffer.Append(input.Command, result.Stdout, result.Stderr)
	}
	return tools.JSONResult(result), nil
}

// SuggestCommandTool implements suggest_command: formats a suggestion for
// the user without executing anything.
type SuggestCommandTool struct{}

// NewSuggestCommandTool creates a suggest_command tool.
func NewSuggestCommandTool() *SuggestCommandTool { return &SuggestCommandTool{} }

func (t *SuggestCommandTool) Name() string { return "suggest_command" }

func (t *SuggestCommandTool) Description() string {
	return "Suggest a command for the user to run themselves, with an explanation. Executes nothing."
}

func (t *SuggestCommandTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command":     map[string]any{"type": "string", "description": "The suggested command."},
			"explanation": map[string]any{"type": "string", "description": "Why the user should run it."},
		},
		"required": []string{"command"},
	})
}

func (t *SuggestCommandTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Command     string `json:"command"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return tools.ErrorResult("", "command is required"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Suggested command:\n\n    %s\n", input.Command)
	if input.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", input.Explanation)
	}
	return &tools.Result{Content: b.String()}, nil
}

// CheckCommandTool implements check_command_available.
type CheckCommandTool struct{}

// NewCheckCommandTool creates a check_command_available tool.
func NewCheckCommandTool() *CheckCommandTool { return &CheckCommandTool{} }

func (t *CheckCommandTool) Name() string { return "check_command_available" }

func (t *CheckCommandTool) Description() string {
	return "Check whether a command is available on PATH."
}

func (t *CheckCommandTool) Schema() []byte {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Command name, e.g. \"docker\"."},
		},
		"required": []string{"command"},
	})
}

func (t *CheckCommandTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	name := strings.TrimSpace(input.Command)
	if name == "" || strings.ContainsAny(name, " \t/;|&") {
		return tools.ErrorResult("", "command must be a bare executable name"), nil
	}

	path, err := exec.LookPath(name)
	return tools.JSONResult(map[string]any{
		"command":   name,
		"available": err == nil,
		"path":      path,
	}), nil
}
