package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine describes one configured engine. Immutable once a session has been
// started from it; the orchestrator never writes the registry back.
type Engine struct {
	Name    string            `yaml:"name"`
	Path    string            `yaml:"path"`
	Enabled bool              `yaml:"enabled"`
	Options map[string]string `yaml:"options"`
}

type registryFile struct {
	Engines []Engine `yaml:"engines"`
}

// Registry is the durable engine-name to configuration mapping, loaded from
// a YAML file.
type Registry struct {
	byName map[string]Engine
	order  []string
}

func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine registry %q: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var payload registryFile
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode engine registry: %w", err)
	}

	r := &Registry{byName: make(map[string]Engine, len(payload.Engines))}
	for i := range payload.Engines {
		e := payload.Engines[i]
		e.Name = strings.TrimSpace(e.Name)
		e.Path = strings.TrimSpace(e.Path)
		if e.Name == "" {
			return nil, fmt.Errorf("engine entry %d: name required", i)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("engine %q: path required", e.Name)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate engine name %q", e.Name)
		}
		if e.Options == nil {
			e.Options = map[string]string{}
		}
		r.byName[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return r, nil
}

// Get returns the configuration for a name, or false when unknown.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.byName[strings.TrimSpace(name)]
	return e, ok
}

// List returns configurations in file order. With enabledOnly set, disabled
// entries are skipped.
func (r *Registry) List(enabledOnly bool) []Engine {
	out := make([]Engine, 0, len(r.order))
	for _, name := range r.order {
		e := r.byName[name]
		if enabledOnly && !e.Enabled {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Names returns engine names in file order, enabled entries only.
func (r *Registry) Names() []string {
	var out []string
	for _, e := range r.List(true) {
		out = append(out, e.Name)
	}
	return out
}
