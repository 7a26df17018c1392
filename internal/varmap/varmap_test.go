package varmap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRenderResolvesAllThreeSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "variables.yaml", "region: us-east-1\n")
	writeFile(t, dir, "variables.json", `{"cluster":"prod"}`)
	writeFile(t, dir, "variables.env", "TOKEN=abc123\n")

	m, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	got := m.Render("region={{yaml.region}} cluster={{json.cluster}} token={{env.TOKEN}}")
	want := "region=us-east-1 cluster=prod token=abc123"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRenderLeavesUnresolvedPlaceholderUnchanged(t *testing.T) {
	m, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	got := m.Render("value={{yaml.missing}}")
	if got != "value={{yaml.missing}}" {
		t.Fatalf("Render() = %q, want placeholder left unchanged", got)
	}
}

func TestProcessEnvironmentWinsOverVariablesEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "variables.env", "HOSTNAME_OVERRIDE=file\n")
	t.Setenv("HOSTNAME_OVERRIDE", "process")

	m, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	got := m.Render("{{env.HOSTNAME_OVERRIDE}}")
	if got != "process" {
		t.Fatalf("Render() = %q, want process-env value to win", got)
	}
}

func TestWatchReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "variables.yaml", "region: us-east-1\n")

	m, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if err := m.WatchReload(); err != nil {
		t.Fatalf("WatchReload: %v", err)
	}

	writeFile(t, dir, "variables.yaml", "region: us-west-2\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Render("{{yaml.region}}") == "us-west-2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for hot reload to pick up variables.yaml change")
}
