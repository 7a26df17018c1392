// Package collector implements the Collector Config Emitter: for each
// distinct collector kind in the enabled Metric set, it ensures a local
// collector binary is present (downloading and unpacking it on demand),
// generates its TOML config, and supervises the resulting child process,
// restarting it on exit (spec §4.K).
//
// Process lifecycle (pipe stdout/stderr, interrupt-then-kill shutdown: an
// interrupt on cancellation, a kill if the process is still alive 10s
// later) is
// grounded on the teacher's own child-process harness,
// engine/internal/testutil/testsite/testsite.go.
package collector

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

// Config controls where binaries and generated configs live, and where
// collectors should POST ingested batches.
type Config struct {
	BinDir       string // directory binaries are downloaded/unpacked into
	ConfigDir    string // directory generated TOML configs are written into
	IngestURL    string // base URL of the core's ingest endpoint
	DownloadURLs map[string]string // "<collector>_<os>_<arch>" or collector name -> download URL template (os_arch substituted)
}

func (c Config) withDefaults() Config {
	if c.BinDir == "" {
		c.BinDir = "./collectors/bin"
	}
	if c.ConfigDir == "" {
		c.ConfigDir = "./collectors/config"
	}
	return c
}

// Supervisor owns one running child process per collector kind.
type Supervisor struct {
	cfg Config
	log logging.Logger

	httpClient *http.Client

	mu        sync.Mutex
	processes map[string]context.CancelFunc // collector kind -> stop
}

// New returns a ready Supervisor.
func New(cfg Config, log logging.Logger) *Supervisor {
	if log == nil {
		log = logging.New(nil)
	}
	return &Supervisor{
		cfg:        cfg.withDefaults(),
		log:        log,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		processes:  make(map[string]context.CancelFunc),
	}
}

// Sync ensures exactly one supervised process per distinct collector kind
// present in metrics, stopping any previously running collector kind that
// is no longer referenced.
func (s *Supervisor) Sync(ctx context.Context, metrics []models.MetricDefinition) error {
	grouped := groupByCollector(metrics)

	s.mu.Lock()
	running := make(map[string]bool, len(s.processes))
	for kind := range s.processes {
		running[kind] = true
	}
	s.mu.Unlock()

	for kind, kindMetrics := range grouped {
		if err := s.ensureBinary(ctx, kind); err != nil {
			s.log.ErrorCtx(ctx, "collector: ensure binary failed, kind skipped", "collector", kind, "error", err)
			continue
		}
		configPath, err := s.writeConfig(kind, kindMetrics)
		if err != nil {
			s.log.ErrorCtx(ctx, "collector: write config failed, kind skipped", "collector", kind, "error", err)
			continue
		}
		s.startOrRestart(ctx, kind, configPath)
		delete(running, kind)
	}

	for kind := range running {
		s.stop(kind)
	}
	return nil
}

func groupByCollector(metrics []models.MetricDefinition) map[string][]models.MetricDefinition {
	out := make(map[string][]models.MetricDefinition)
	for _, m := range metrics {
		out[m.Collector] = append(out[m.Collector], m)
	}
	return out
}

func (s *Supervisor) binaryPath(kind string) string {
	name := kind
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(s.cfg.BinDir, name)
}

// ensureBinary downloads and unpacks kind's binary if it is not already
// present on disk. The URL is looked up under "<kind>_<os>_<arch>" first,
// then under the bare kind; the template's "{os_arch}" placeholder is
// substituted with runtime.GOOS/GOARCH.
func (s *Supervisor) ensureBinary(ctx context.Context, kind string) error {
	path := s.binaryPath(kind)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	osArch := runtime.GOOS + "_" + runtime.GOARCH
	tmpl, ok := s.cfg.DownloadURLs[kind+"_"+osArch]
	if !ok {
		tmpl, ok = s.cfg.DownloadURLs[kind]
	}
	if !ok {
		return fmt.Errorf("collector: no download_url configured for %s", kind)
	}
	url := strings.ReplaceAll(tmpl, "{os_arch}", osArch)

	if err := os.MkdirAll(s.cfg.BinDir, 0o755); err != nil {
		return fmt.Errorf("collector: create bin dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("collector: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector: download %s: status %s", url, resp.Status)
	}

	return unpackBinary(resp.Body, url, s.cfg.BinDir, kind, path)
}

// unpackBinary extracts the named kind's executable from a .tar.gz or .zip
// archive (detected by url's extension), or writes the response body
// directly if the URL names a bare binary.
func unpackBinary(body io.Reader, url, destDir, kind, finalPath string) error {
	switch {
	case strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz"):
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("collector: gunzip: %w", err)
		}
		defer gz.Close()
		tr := tar.NewReader(gz)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return fmt.Errorf("collector: %s not found in archive", kind)
			}
			if err != nil {
				return fmt.Errorf("collector: read tar entry: %w", err)
			}
			if filepath.Base(hdr.Name) != kind && filepath.Base(hdr.Name) != filepath.Base(finalPath) {
				continue
			}
			return writeExecutable(finalPath, tr)
		}
	case strings.HasSuffix(url, ".zip"):
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("collector: buffer zip: %w", err)
		}
		zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
		if err != nil {
			return fmt.Errorf("collector: open zip: %w", err)
		}
		for _, f := range zr.File {
			if filepath.Base(f.Name) != kind && filepath.Base(f.Name) != filepath.Base(finalPath) {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("collector: open zip entry: %w", err)
			}
			defer rc.Close()
			return writeExecutable(finalPath, rc)
		}
		return fmt.Errorf("collector: %s not found in archive", kind)
	default:
		return writeExecutable(finalPath, body)
	}
}

func writeExecutable(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return fmt.Errorf("collector: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("collector: write %s: %w", path, err)
	}
	return nil
}

// translatedConfig is the generic TOML shape every generated config
// shares: whatever sources/inputs/transforms each metric's own metadata
// already declares, plus one injected sink pointing at the core's ingest
// endpoint.
type translatedConfig struct {
	Metrics map[string]any `toml:"metrics"`
	Sinks   map[string]any `toml:"sinks"`
}

// writeConfig translates kindMetrics into a TOML file and returns its
// path. Each metric's metadata is preserved verbatim under its own id so
// user-declared sources/inputs/transforms survive untouched; only the
// sink/output is ours to inject.
func (s *Supervisor) writeConfig(kind string, kindMetrics []models.MetricDefinition) (string, error) {
	if err := os.MkdirAll(s.cfg.ConfigDir, 0o755); err != nil {
		return "", fmt.Errorf("collector: create config dir: %w", err)
	}

	cfg := translatedConfig{Metrics: make(map[string]any, len(kindMetrics)), Sinks: make(map[string]any)}
	for _, m := range kindMetrics {
		cfg.Metrics[m.ID] = m.Metadata
		sinkURL := fmt.Sprintf("%s?metric_id=%s&collector=%s", s.cfg.IngestURL, m.ID, kind)
		cfg.Sinks["wavectl_ingest_"+m.ID] = map[string]any{
			"type": "http",
			"uri":  sinkURL,
		}
	}

	path := filepath.Join(s.cfg.ConfigDir, kind+".toml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("collector: create config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return "", fmt.Errorf("collector: encode config %s: %w", path, err)
	}
	return path, nil
}

// startOrRestart launches kind's process if not already running. Restart
// on exit is handled by the supervisor loop started here, not by this
// call directly.
func (s *Supervisor) startOrRestart(ctx context.Context, kind, configPath string) {
	s.mu.Lock()
	_, already := s.processes[kind]
	s.mu.Unlock()
	if already {
		return
	}

	procCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.processes[kind] = cancel
	s.mu.Unlock()

	go s.superviseLoop(procCtx, kind, configPath)
}

// superviseLoop runs kind's binary against configPath, restarting it with
// a bounded backoff on every exit until procCtx is cancelled.
func (s *Supervisor) superviseLoop(procCtx context.Context, kind, configPath string) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if procCtx.Err() != nil {
			return
		}
		started := time.Now()
		err := s.runOnce(procCtx, kind, configPath)
		if procCtx.Err() != nil {
			return
		}
		if err != nil {
			s.log.WarnCtx(procCtx, "collector: process exited, restarting", "collector", kind, "error", err)
		}
		if time.Since(started) > maxBackoff {
			backoff = time.Second
		}
		select {
		case <-time.After(backoff):
		case <-procCtx.Done():
			return
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context, kind, configPath string) error {
	cmd := exec.CommandContext(ctx, s.binaryPath(kind), "--config", configPath)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 10 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", kind, err)
	}

	go logLines(ctx, s.log, kind, "stdout", stdout)
	go logLines(ctx, s.log, kind, "stderr", stderr)

	return cmd.Wait()
}

func logLines(ctx context.Context, log logging.Logger, kind, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.InfoCtx(ctx, "collector: "+stream, "collector", kind, "line", scanner.Text())
	}
}

// stop cancels kind's supervise loop, which in turn stops its child
// process via CommandContext.
func (s *Supervisor) stop(kind string) {
	s.mu.Lock()
	cancel, ok := s.processes[kind]
	if ok {
		delete(s.processes, kind)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every running collector. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	kinds := make([]string, 0, len(s.processes))
	for kind := range s.processes {
		kinds = append(kinds, kind)
	}
	s.mu.Unlock()
	for _, kind := range kinds {
		s.stop(kind)
	}
}
