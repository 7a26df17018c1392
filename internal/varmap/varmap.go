// Package varmap implements the Variable Mapper: it loads variables.yaml,
// variables.json and variables.env/the process environment in fixed
// precedence and renders mustache-style placeholders against them.
//
// Hot reload is modeled directly on the teacher's HotReloadSystem
// (engine/internal/runtime/runtime.go): watch the containing directory,
// filter events down to the exact file names we care about, reload, and
// swap a pointer so readers never observe a half-updated source set.
package varmap

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"wavectl/internal/telemetry/logging"
)

// Sources is the nested object Render looks values up in: {yaml:{...},
// json:{...}, env:{...}}.
type Sources struct {
	YAML map[string]string
	JSON map[string]string
	Env  map[string]string
}

var placeholderRE = regexp.MustCompile(`\{\{\s*(yaml|json|env)\.([A-Za-z0-9_.\-]+)\s*\}\}`)

// Mapper renders template placeholders against the three variable sources.
// The zero value is not usable; construct with New.
type Mapper struct {
	dir     string
	log     logging.Logger
	current atomic.Pointer[Sources]

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// New performs a cold load of dir's three optional sources and returns a
// ready Mapper. dir may not exist yet; in that case all three sources are
// empty and a later WatchReload will pick them up once created.
func New(dir string, log logging.Logger) (*Mapper, error) {
	if log == nil {
		log = logging.New(nil)
	}
	m := &Mapper{dir: dir, log: log}
	sources, err := loadSources(dir)
	if err != nil {
		return nil, err
	}
	m.current.Store(sources)
	return m, nil
}

func loadSources(dir string) (*Sources, error) {
	sources := &Sources{YAML: map[string]string{}, JSON: map[string]string{}, Env: map[string]string{}}

	if data, err := os.ReadFile(filepath.Join(dir, "variables.yaml")); err == nil {
		var flat map[string]string
		if err := yaml.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("varmap: parse variables.yaml: %w", err)
		}
		sources.YAML = flat
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("varmap: read variables.yaml: %w", err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, "variables.json")); err == nil {
		var flat map[string]string
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("varmap: parse variables.json: %w", err)
		}
		sources.JSON = flat
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("varmap: read variables.json: %w", err)
	}

	envFile := map[string]string{}
	if f, err := os.Open(filepath.Join(dir, "variables.env")); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			envFile[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		_ = f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("varmap: scan variables.env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("varmap: read variables.env: %w", err)
	}

	// process environment wins over variables.env on collision.
	for k, v := range envFile {
		sources.Env[k] = v
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			sources.Env[k] = v
		}
	}

	return sources, nil
}

// Render substitutes every {{yaml.key}}/{{json.key}}/{{env.key}}
// placeholder it can resolve. An unresolved placeholder is left verbatim
// and logged at info level — spec.md is explicit this is never an error.
func (m *Mapper) Render(template string) string {
	sources := m.current.Load()
	return placeholderRE.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderRE.FindStringSubmatch(match)
		source, key := sub[1], sub[2]
		var table map[string]string
		switch source {
		case "yaml":
			table = sources.YAML
		case "json":
			table = sources.JSON
		case "env":
			table = sources.Env
		}
		if val, ok := table[key]; ok {
			return val
		}
		m.log.InfoCtx(context.Background(), "varmap: unresolved placeholder, leaving unchanged", "source", source, "key", key)
		return match
	})
}

// RenderValue walks an arbitrary JSON-shaped value (string, map[string]any,
// []any, or any other scalar) and returns a copy with every string leaf
// passed through Render. Plan item metadata and component params are both
// map[string]any trees read straight off a YAML document, so dispatch
// renders them with this rather than Render's single-string form.
func (m *Mapper) RenderValue(v any) any {
	switch val := v.(type) {
	case string:
		return m.Render(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = m.RenderValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = m.RenderValue(vv)
		}
		return out
	default:
		return v
	}
}

// Snapshot returns the currently active source set. Callers must not
// mutate the returned value.
func (m *Mapper) Snapshot() *Sources {
	return m.current.Load()
}

// WatchReload watches dir for writes to variables.yaml/json/env and
// atomically swaps in a freshly loaded Sources whenever one changes. It
// runs until stopCh is closed via Close.
func (m *Mapper) WatchReload() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("varmap: create watcher: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("varmap: ensure variables dir: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("varmap: watch %s: %w", m.dir, err)
	}
	m.watcher = watcher
	m.stopCh = make(chan struct{})

	watched := map[string]bool{
		filepath.Join(m.dir, "variables.yaml"): true,
		filepath.Join(m.dir, "variables.json"): true,
		filepath.Join(m.dir, "variables.env"):  true,
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[event.Name] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				sources, err := loadSources(m.dir)
				if err != nil {
					m.log.ErrorCtx(context.Background(), "varmap: reload failed", "error", err)
					continue
				}
				m.current.Store(sources)
				m.log.InfoCtx(context.Background(), "varmap: reloaded variable sources", "changed", event.Name)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-m.stopCh:
				return
			}
		}
	}()
	return nil
}

// Close stops the reload watcher, if running.
func (m *Mapper) Close() error {
	if m.stopCh != nil {
		close(m.stopCh)
	}
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
