package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/attestia/gatekeep/internal/domain"
)

// Registry holds the process-wide set of validated agent profiles.
// It is populated once at startup and read-only afterwards, so concurrent
// unsynchronized reads are safe.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry builds a Registry from already-validated profiles.
// Every profile is validated again; a single invalid profile fails the load.
func NewRegistry(profiles []Profile) (*Registry, error) {
	byID := make(map[string]*Profile, len(profiles))
	for i := range profiles {
		p := profiles[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		byID[p.ID] = &p
	}
	return &Registry{profiles: byID}, nil
}

// GetByID returns the profile for the given agent id.
func (r *Registry) GetByID(id string) (*Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("agent profile %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// IDs returns all registered profile ids, sorted alphabetically.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Profiles returns all registered profiles.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.profiles))
	for _, id := range r.IDs() {
		out = append(out, r.profiles[id])
	}
	return out
}

// LoadFromFile reads a single Profile from a YAML file and validates it.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate profile file %s: %w", path, err)
	}

	return &p, nil
}

// LoadFromDirectory reads all .yaml/.yml files from a directory into a
// Registry. A missing directory is an error: a governance service with no
// profiles cannot authorize anything.
func LoadFromDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("profiles directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("read profiles directory %s: %w", dir, err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		p, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}

	return NewRegistry(profiles)
}
