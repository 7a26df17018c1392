package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wavectl/pkg/models"
)

func TestGroupByCollectorPartitionsByCollectorField(t *testing.T) {
	metrics := []models.MetricDefinition{
		{ID: "cpu", Collector: "vector"},
		{ID: "mem", Collector: "vector"},
		{ID: "disk", Collector: "telegraf"},
	}
	grouped := groupByCollector(metrics)
	if len(grouped["vector"]) != 2 || len(grouped["telegraf"]) != 1 {
		t.Fatalf("grouped = %+v, want 2 vector + 1 telegraf", grouped)
	}
}

func TestEnsureBinaryDownloadsBareBinaryWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := New(Config{
		BinDir:       filepath.Join(dir, "bin"),
		ConfigDir:    filepath.Join(dir, "config"),
		IngestURL:    "http://core.test/ingest",
		DownloadURLs: map[string]string{"vector": srv.URL + "/vector-{os_arch}"},
	}, nil)

	if err := s.ensureBinary(context.Background(), "vector"); err != nil {
		t.Fatalf("ensureBinary: %v", err)
	}
	if _, err := os.Stat(s.binaryPath("vector")); err != nil {
		t.Fatalf("expected binary on disk: %v", err)
	}
}

func TestEnsureBinarySkipsDownloadWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{BinDir: filepath.Join(dir, "bin"), ConfigDir: filepath.Join(dir, "config")}, nil)
	if err := os.MkdirAll(s.cfg.BinDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.binaryPath("vector"), []byte("stub"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := s.ensureBinary(context.Background(), "vector"); err != nil {
		t.Fatalf("ensureBinary should no-op when binary exists: %v", err)
	}
}

func TestWriteConfigInjectsIngestSinkPerMetric(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{BinDir: filepath.Join(dir, "bin"), ConfigDir: filepath.Join(dir, "config"), IngestURL: "http://core.test/ingest"}, nil)

	metrics := []models.MetricDefinition{
		{ID: "cpu", Collector: "vector", Metadata: map[string]any{"source": "host_metrics"}},
	}
	path, err := s.writeConfig("vector", metrics)
	if err != nil {
		t.Fatalf("writeConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("generated config is empty")
	}
	if !strings.Contains(string(data), "wavectl_ingest_cpu") {
		t.Fatalf("generated config missing injected sink, got:\n%s", data)
	}
}
