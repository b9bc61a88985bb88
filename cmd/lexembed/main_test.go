package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/lexembed/internal/config"
	"go.uber.org/zap"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestReorderArgs(t *testing.T) {
	fs := flag.NewFlagSet("similarity", flag.ContinueOnError)
	fs.Int("limit", 10, "")
	fs.String("output", "text", "")
	fs.Bool("legacy", false, "")

	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after texts are moved first", []string{"testo", "-output", "json"}, []string{"-output", "json", "testo"}},
		{"flags first returns unchanged", []string{"-output", "json", "testo"}, []string{"-output", "json", "testo"}},
		{"texts only", []string{"uno", "due"}, []string{"uno", "due"}},
		{"stdin marker is not a flag", []string{"-"}, []string{"-"}},
		{"empty", []string{}, []string{}},
		{"positionals keep their order around flags",
			[]string{"responsabilità extracontrattuale", "art. 2043 c.c.", "--limit", "1", "art. 1218 c.c."},
			[]string{"--limit", "1", "responsabilità extracontrattuale", "art. 2043 c.c.", "art. 1218 c.c."}},
		{"bool flag takes no value", []string{"a", "-legacy", "b"}, []string{"-legacy", "a", "b"}},
		{"inline value", []string{"a", "-output=json", "b"}, []string{"-output=json", "a", "b"}},
		{"double dash ends flags", []string{"a", "-legacy", "--", "-x", "b"}, []string{"-legacy", "--", "a", "-x", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reorderArgs(fs, tt.args); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReorderArgs_similarityQueryStaysFirst(t *testing.T) {
	fs := flag.NewFlagSet("similarity", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "")
	args := []string{"responsabilità extracontrattuale", "art. 2043 c.c.", "--limit", "1", "art. 1218 c.c."}
	if err := fs.Parse(reorderArgs(fs, args)); err != nil {
		t.Fatal(err)
	}
	if *limit != 1 {
		t.Errorf("limit = %d, want 1", *limit)
	}
	rest := fs.Args()
	if len(rest) != 3 || rest[0] != "responsabilità extracontrattuale" || rest[2] != "art. 1218 c.c." {
		t.Errorf("positional args = %q", rest)
	}
}

func TestReadTexts(t *testing.T) {
	got, err := readTexts([]string{"a", "b"}, strings.NewReader("ignored"))
	if err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("args should win: %v, %v", got, err)
	}
	for _, args := range [][]string{nil, {"-"}} {
		got, err = readTexts(args, strings.NewReader("prima riga\n\n  seconda riga  \n"))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, []string{"prima riga", "seconda riga"}) {
			t.Errorf("readTexts(%v) = %q", args, got)
		}
	}
}

func TestParseExtensions(t *testing.T) {
	got := parseExtensions(" .PDF, docx ,,txt")
	want := []string{".pdf", ".docx", ".txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseExtensions() = %v, want %v", got, want)
	}
	if parseExtensions("") != nil {
		t.Error("empty list should yield nil")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9090
model:
  batch_size: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Server.Port != 9090 || cfg.Model.BatchSize != 8 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Model.MaxTokens != 512 {
		t.Errorf("defaults should fill unset keys, max_tokens = %d", cfg.Model.MaxTokens)
	}
}

func TestLoadConfig_defaultsWhenDefaultPathMissing(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Server.Port != 8080 || cfg.Model.Name != config.DefaultModelName {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "lexembed.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("an explicit missing path should be an error")
	}
}

func TestApplyServerOverrides(t *testing.T) {
	cfg := config.Default()
	applyServerOverrides(cfg, "", 0)
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("zero overrides should keep config: %+v", cfg.Server)
	}
	applyServerOverrides(cfg, "127.0.0.1", 9999)
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9999 {
		t.Errorf("overrides not applied: %+v", cfg.Server)
	}
}

func TestNewServer_UnavailableUntilLoaded(t *testing.T) {
	svc, srv := newServer(config.Default(), zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("health before load: got %d, want 503", resp.StatusCode)
	}
	if svc.Ready() {
		t.Error("service should not be ready before Start")
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: got %d", resp.StatusCode)
	}
}

func TestOnnxLoader_InvalidDevice(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Devices = []string{"tpu"}
	if _, err := onnxLoader(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for an unknown device")
	}
}

func TestRank(t *testing.T) {
	query := []float32{1, 0}
	candidates := []string{"lontano", "vicino", "medio"}
	vecs := [][]float32{{0, 1}, {1, 0}, {0.6, 0.8}}

	ranked, err := rank(query, candidates, vecs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 || ranked[0].Text != "vicino" || ranked[1].Text != "medio" {
		t.Errorf("unexpected ranking: %+v", ranked)
	}
	if _, err := rank(query, candidates, vecs[:2], 2); err == nil {
		t.Error("expected error when vectors are missing")
	}
}

func TestNewClient_timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	if _, err := newClient(ts.URL, 20*time.Millisecond, zap.NewNop()).Health(context.Background()); err == nil {
		t.Error("expected a timeout error from a slow server")
	}
	if got := newClient(ts.URL+"/", 0, zap.NewNop()).BaseURL(); got != ts.URL {
		t.Errorf("BaseURL() = %s, want %s", got, ts.URL)
	}
}
