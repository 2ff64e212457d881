package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const feedHead = `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title><link>http://example.com</link><description>d</description>`

func item(title string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>http://example.com/%s</link></item>`, title, title)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunReinjectsMissingEntries(t *testing.T) {
	var full atomic.Bool
	full.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := feedHead + item("A")
		if full.Load() {
			body += item("B")
		}
		_, _ = w.Write([]byte(body + `</channel></rss>`))
	}))
	defer ts.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "backlog.yaml")
	cfg := fmt.Sprintf(`log_level: "off"
database:
  driver: sqlite
  dsn: %s
tasks:
  tv:
    rss: %s
    backlog: 1 day
`, filepath.Join(dir, "backlog.db"), ts.URL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "run", "tv", "--config", cfgPath)
	if err != nil {
		t.Fatalf("first run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "tv: ok, 2 entries") {
		t.Fatalf("unexpected output: %s", out)
	}

	full.Store(false)
	out, err = execute(t, "run", "tv", "--config", cfgPath)
	if err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Added 1 entries from backlog") || !strings.Contains(out, "- B (http://example.com/B)") {
		t.Fatalf("expected B to be reinjected: %s", out)
	}

	out, err = execute(t, "list", "tv", "--config", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected 2 records, got: %s", out)
	}

	if _, err := execute(t, "run", "movies", "--config", cfgPath); err == nil {
		t.Fatalf("expected unknown task error")
	}
}
