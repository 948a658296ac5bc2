package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vdiff/internal/config"
	"github.com/vango-dev/vdiff/internal/errors"
)

const prevDoc = `tag: ul
children:
  - tag: li
    key: a
    children: [a]
  - tag: li
    key: b
    children: [b]
  - tag: li
    key: c
    children: [c]
`

const nextDoc = `<ul>
  <li key="c">c</li>
  <li key="a">a</li>
  <li key="b">b</li>
</ul>
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiffText(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "prev.yaml", prevDoc)
	next := writeFile(t, dir, "next.html", nextDoc)

	out, err := execute(t, "diff", prev, next)
	if err != nil {
		t.Fatalf("diff error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 2 moves and a summary:\n%s", len(lines), out)
	}
	// Handles: ul=#1, li a=#2, li b=#4, li c=#6. Placement runs last to
	// first.
	want := []string{"Move #4 to end", "Move #2 before #4"}
	if diff := cmp.Diff(want, lines[:2]); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if lines[2] != "2 mutations (Move=2)" {
		t.Errorf("summary = %q", lines[2])
	}
}

func TestDiffNoChanges(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "prev.yaml", prevDoc)

	out, err := execute(t, "diff", prev, prev)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "no changes" {
		t.Errorf("output = %q, want no changes", out)
	}
}

func TestDiffJSON(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "prev.yaml", prevDoc)
	next := writeFile(t, dir, "next.yaml", "tag: ul\nattrs: {class: list}\nchildren:\n  - tag: li\n    key: a\n    children: [A]\n")

	out, err := execute(t, "diff", "--format", "json", prev, next)
	if err != nil {
		t.Fatalf("diff error: %v", err)
	}

	var doc struct {
		Mutations []mutationJSON `json:"mutations"`
		Stats     struct {
			Removes  int `json:"removes"`
			SetAttrs int `json:"set_attrs"`
			SetTexts int `json:"set_texts"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if doc.Stats.Removes != 2 || doc.Stats.SetAttrs != 1 || doc.Stats.SetTexts != 1 {
		t.Errorf("stats = %+v", doc.Stats)
	}
	if len(doc.Mutations) != 4 {
		t.Fatalf("mutations = %+v, want 4", doc.Mutations)
	}
	counts := map[string]int{}
	for _, m := range doc.Mutations {
		counts[m.Op]++
	}
	if counts["Remove"] != 2 || counts["SetAttribute"] != 1 || counts["SetText"] != 1 {
		t.Errorf("op counts = %v", counts)
	}
}

func TestDiffErrors(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "prev.yaml", prevDoc)
	dup := writeFile(t, dir, "dup.yaml", "tag: ul\nchildren:\n  - {tag: li, key: x}\n  - {tag: li, key: x}\n")
	bad := writeFile(t, dir, "bad.yaml", "tag: [")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"strict duplicate keys", []string{"diff", "--strict", prev, dup}, "E001"},
		{"bad document", []string{"diff", prev, bad}, "E010"},
		{"unknown extension", []string{"diff", prev, filepath.Join(dir, "x.txt")}, "E011"},
		{"unknown format", []string{"diff", "--format", "xml", prev, prev}, ""},
		{"missing argument", []string{"diff", prev}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.code != "" && errors.CodeOf(err) != tt.code {
				t.Errorf("code = %q, want %q (%v)", errors.CodeOf(err), tt.code, err)
			}
		})
	}

	// Without --strict the first duplicate wins.
	if _, err := execute(t, "diff", prev, dup); err != nil {
		t.Errorf("non-strict diff error: %v", err)
	}
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	prev := writeFile(t, dir, "prev.yaml", prevDoc)
	next := writeFile(t, dir, "next.html", nextDoc)

	out, err := execute(t, "apply", prev, next)
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if want := "<ul><li>c</li><li>a</li><li>b</li></ul>\n"; out != want {
		t.Errorf("apply output = %q, want %q", out, want)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if out != version+"\n" {
		t.Errorf("version --short = %q", out)
	}

	out, err = execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Go version:") {
		t.Errorf("version output missing Go version:\n%s", out)
	}
}

func TestServerConfig(t *testing.T) {
	cfg := config.New()
	cfg.Server.Port = 9000
	cfg.Server.ReadTimeout = "3s"
	cfg.Metrics.Enabled = false
	cfg.Reconcile.StrictKeys = false
	cfg.Snapshot.Backend = "disk"
	cfg.Snapshot.Dir = t.TempDir()

	sc, err := serverConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Address != ":9000" {
		t.Errorf("Address = %q", sc.Address)
	}
	if sc.ReadTimeout.Seconds() != 3 {
		t.Errorf("ReadTimeout = %v", sc.ReadTimeout)
	}
	if sc.StrictKeys {
		t.Error("StrictKeys should follow the config")
	}
	if sc.MetricsPath != "" || len(sc.Middleware) != 0 {
		t.Errorf("metrics disabled but MetricsPath=%q middleware=%d", sc.MetricsPath, len(sc.Middleware))
	}
	if sc.Store == nil {
		t.Error("disk backend should open a store")
	}

	cfg = config.New()
	cfg.Tracing.Enabled = true
	sc, err = serverConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if sc.MetricsPath != config.DefaultMetricsPath || len(sc.Middleware) != 2 {
		t.Errorf("MetricsPath=%q middleware=%d, want metrics and tracing", sc.MetricsPath, len(sc.Middleware))
	}
	if sc.Store != nil {
		t.Error("no backend should mean no store")
	}
}

func TestServeInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.ConfigFileName, `{"snapshot": {"backend": "ftp"}}`)

	_, err := execute(t, "serve", "--config", dir)
	if errors.CodeOf(err) != "E042" {
		t.Errorf("serve error = %v, want E042", err)
	}
}
