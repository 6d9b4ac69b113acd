package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ai-innovation-art/quasar/pkg/models"
)

const (
	// loopWindow is how many recent tool-call signatures are retained.
	loopWindow = 5

	// loopRunLength is how many identical consecutive signatures declare
	// a loop.
	loopRunLength = 3
)

// loopDetector watches tool-call signatures (name plus key arguments)
// for the repetition pattern that means the model is stuck.
type loopDetector struct {
	signatures []string
}

// Add records a call's signature.
func (d *loopDetector) Add(call models.ToolCall) {
	d.signatures = append(d.signatures, signature(call))
	if len(d.signatures) > loopWindow {
		d.signatures = d.signatures[len(d.signatures)-loopWindow:]
	}
}

// Looping reports whether the last loopRunLength signatures are identical.
func (d *loopDetector) Looping() bool {
	if len(d.signatures) < loopRunLength {
		return false
	}
	last := d.signatures[len(d.signatures)-1]
	for i := 2; i <= loopRunLength; i++ {
		if d.signatures[len(d.signatures)-i] != last {
			return false
		}
	}
	return true
}

// signature reduces a call to name plus its sorted scalar arguments, so
// that argument ordering differences do not defeat detection.
func signature(call models.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return call.Name + ":" + string(call.Args)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(call.Name)
	for _, k := range keys {
		switch v := args[k].(type) {
		case string, float64, bool, nil:
			fmt.Fprintf(&b, "|%s=%v", k, v)
		}
	}
	return b.String()
}
