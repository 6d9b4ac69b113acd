package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<html><head><title>Sample Doc</title><script>var x=1;</script></head>
<body><h1>Heading</h1><p>First paragraph of body text.</p>
<a href="/next">Next page</a><a href="https://example.com/other">Other site</a></body></html>`

func TestFetchExtractsTextTitleLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	page, err := NewExtractorForTesting().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Sample Doc" {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "First paragraph") {
		t.Errorf("text missing body: %q", page.Text)
	}
	if strings.Contains(page.Text, "var x=1") {
		t.Error("script content leaked into text")
	}
	if len(page.Links) != 2 {
		t.Fatalf("links = %+v, want 2", page.Links)
	}
	if !strings.HasSuffix(page.Links[0].URL, "/next") {
		t.Errorf("relative link not resolved: %q", page.Links[0].URL)
	}
}

func TestValidateURLRefusesPrivateAndNonHTTP(t *testing.T) {
	for _, raw := range []string{
		"file:///etc/passwd",
		"ftp://example.com/x",
		"http://127.0.0.1/admin",
		"http://169.254.169.254/latest/meta-data",
	} {
		if err := validateURL(raw); err == nil {
			t.Errorf("validateURL(%q) should fail", raw)
		}
	}
}

func TestReadURLPagination(t *testing.T) {
	long := strings.Repeat("word ", 3000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, long)
	}))
	defer srv.Close()

	tool := NewFetchTool(NewExtractorForTesting())
	payload, _ := json.Marshal(map[string]any{"url": srv.URL, "window": 1000})
	res, err := tool.Execute(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("read_url failed: %s", res.Content)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out["has_more"] != true {
		t.Error("has_more should be true for the first window")
	}
	if len(out["content"].(string)) != 1000 {
		t.Errorf("window length = %d", len(out["content"].(string)))
	}

	payload, _ = json.Marshal(map[string]any{"url": srv.URL, "offset": int(out["total_chars"].(float64)) - 10})
	res, _ = tool.Execute(context.Background(), payload)
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out["has_more"] != false {
		t.Error("has_more should be false on the final window")
	}
}

func TestBrowseInteractiveEnumeratesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	tool := NewBrowseTool(NewExtractorForTesting())
	payload, _ := json.Marshal(map[string]any{"url": srv.URL})
	res, err := tool.Execute(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Links []Link `json:"links"`
	}
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Links) != 2 {
		t.Errorf("links = %+v", out.Links)
	}
}
