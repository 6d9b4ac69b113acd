package web

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ai-innovation-art/quasar/internal/tools"
)

// windowChars is the default read_url page window.
const windowChars = 4000

// FetchTool implements read_url: a paginated, windowed page fetch. The
// model pages through long documents by advancing offset.
type FetchTool struct {
	extractor *Extractor
}

// NewFetchTool creates a read_url tool.
func NewFetchTool(extractor *Extractor) *FetchTool {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &FetchTool{extractor: extractor}
}

func (t *FetchTool) Name() string { return "read_url" }

func (t *FetchTool) Description() string {
	return "Fetch a URL and return a window of its readable text. Advance offset to page through long documents."
}

func (t *FetchTool) Schema() []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string", "description": "URL to fetch (http or https)."},
			"offset": map[string]any{"type": "integer", "description": "Character offset into the extracted text (default 0).", "minimum": 0},
			"window": map[string]any{"type": "integer", "description": "Window size in characters (default 4000).", "minimum": 1},
		},
		"required": []string{"url"},
	})
	return payload
}

func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		URL    string `json:"url"`
		Offset int    `json:"offset"`
		Window int    `json:"window"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return tools.ErrorResult("", "url is required"), nil
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	if input.Window <= 0 {
		input.Window = windowChars
	}

	page, err := t.extractor.Fetch(ctx, input.URL)
	if err != nil {
		return tools.ErrorResult("", err.Error()), nil
	}

	text := page.Text
	total := len(text)
	if input.Offset >= total && total > 0 {
		return tools.ErrorResult("", fmt.Sprintf("offset %d is past the end of the document (%d chars)", input.Offset, total)), nil
	}
	end := input.Offset + input.Window
	if end > total {
		end = total
	}

	return tools.JSONResult(map[string]any{
		"url":         input.URL,
		"title":       page.Title,
		"content":     text[input.Offset:end],
		"offset":      input.Offset,
		"total_chars": total,
		"has_more":    end < total,
	}), nil
}

// BrowseTool implements browse_interactive: fetches a page and surfaces
// its readable text together with the links found on it, so the model
// can navigate by issuing follow-up calls with a chosen link URL.
type BrowseTool struct {
	extractor *Extractor
}

// NewBrowseTool creates a browse_interactive tool.
func NewBrowseTool(extractor *Extractor) *BrowseTool {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &BrowseTool{extractor: extractor}
}

func (t *BrowseTool) Name() string { return "browse_interactive" }

func (t *BrowseTool) Description() string {
	return "Fetch a page with its outgoing links enumerated, for link-following navigation."
}

func (t *BrowseTool) Schema() []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "URL to open."},
		},
		"required": []string{"url"},
	})
	return payload
}

func (t *BrowseTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return tools.ErrorResult("", "url is required"), nil
	}

	page, err := t.extractor.Fetch(ctx, input.URL)
	if err != nil {
		return tools.ErrorResult("", err.Error()), nil
	}

	text := page.Text
	if len(text) > windowChars {
		text = text[:windowChars]
	}
	return tools.JSONResult(map[string]any{
		"url":     input.URL,
		"title":   page.Title,
		"content": text,
		"links":   page.Links,
	}), nil
}
