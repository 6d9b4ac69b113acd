package agent

import (
	"encoding/json"
	"testing"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

func call(name, args string) models.ToolCall {
	return models.ToolCall{ID: "x", Name: name, Args: json.RawMessage(args)}
}

func TestLoopDetectorTriggersOnThreeIdentical(t *testing.T) {
	d := &loopDetector{}
	d.Add(call("list_files", `{"path": "."}`))
	if d.Looping() {
		t.Fatal("one call is not a loop")
	}
	d.Add(call("list_files", `{"path": "."}`))
	if d.Looping() {
		t.Fatal("two calls are not a loop")
	}
	d.Add(call("list_files", `{"path": "."}`))
	if !d.Looping() {
		t.Fatal("three identical calls must be a loop")
	}
}

func TestLoopDetectorIgnoresVaryingArgs(t *testing.T) {
	d := &loopDetector{}
	d.Add(call("read_file", `{"path": "a.go"}`))
	d.Add(call("read_file", `{"path": "b.go"}`))
	d.Add(call("read_file", `{"path": "c.go"}`))
	if d.Looping() {
		t.Fatal("different arguments are not a loop")
	}
}

func TestLoopDetectorArgOrderInsensitive(t *testing.T) {
	d := &loopDetector{}
	d.Add(call("patch_file", `{"path": "a.go", "find": "x"}`))
	d.Add(call("patch_file", `{"find": "x", "path": "a.go"}`))
	d.Add(call("patch_file", `{"path": "a.go", "find": "x"}`))
	if !d.Looping() {
		t.Fatal("key order must not defeat detection")
	}
}

func TestLoopDetectorInterruptedRun(t *testing.T) {
	d := &loopDetector{}
	d.Add(call("list_files", `{}`))
	d.Add(call("list_files", `{}`))
	d.Add(call("read_file", `{"path": "a.go"}`))
	d.Add(call("list_files", `{}`))
	if d.Looping() {
		t.Fatal("interrupted repetition is not a loop")
	}
}
