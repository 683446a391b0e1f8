package agent

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rewindhq/rewind/internal/transcript"
)

//go:embed schemas/agents/*.json
var bundledSchemas embed.FS

// DefaultID is the profile consulted when no agent can be detected or
// configured, mirroring the teacher registry's DefaultAgentName.
const DefaultID = "claude"

var (
	registryMu      sync.RWMutex
	defaultRegistry *Registry
)

// Registry holds the loaded set of agent profiles, keyed case-insensitively
// by id.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	order    []string
}

// LoadBundled parses every schemas/agents/*.json file embedded in the
// binary into a Registry, sorted by file name for a deterministic load
// order. A malformed or id-less entry is skipped rather than failing the
// whole load, matching the teacher's tolerance for partial plugin
// discovery elsewhere in the registry idiom.
func LoadBundled() (*Registry, error) {
	entries, err := bundledSchemas.ReadDir("schemas/agents")
	if err != nil {
		return nil, fmt.Errorf("reading bundled agent schemas: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	reg := &Registry{profiles: make(map[string]Profile)}
	for _, entry := range entries {
		if path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := bundledSchemas.ReadFile("schemas/agents/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var profile Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			continue
		}
		id := strings.TrimSpace(profile.ID)
		if id == "" {
			continue
		}
		reg.profiles[strings.ToLower(id)] = profile
		reg.order = append(reg.order, strings.ToLower(id))
	}
	return reg, nil
}

// Default returns the process-wide bundled registry, loading it on first
// use. Panics only if the embedded schema set itself fails to read, which
// would indicate a build defect rather than a runtime condition.
func Default() *Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if defaultRegistry == nil {
		reg, err := LoadBundled()
		if err != nil {
			panic(fmt.Sprintf("agent: loading bundled profiles: %v", err))
		}
		defaultRegistry = reg
	}
	return defaultRegistry
}

// Get returns the profile for id (case-insensitive), or false if unknown.
func (r *Registry) Get(id string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// List returns all profiles in load order.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// DefaultProfile returns the DefaultID profile, or the zero Profile if it
// isn't registered.
func (r *Registry) DefaultProfile() Profile {
	p, _ := r.Get(DefaultID)
	return p
}

// Hints converts every loaded profile into a transcript.AgentHint,
// compiling each profile's path regexes once so the transcript package
// never needs to know about JSON profiles at all.
func (r *Registry) Hints() []transcript.AgentHint {
	profiles := r.List()
	hints := make([]transcript.AgentHint, 0, len(profiles))
	for _, p := range profiles {
		hints = append(hints, p.hint())
	}
	return hints
}

func (p Profile) hint() transcript.AgentHint {
	regexes := make([]*regexp.Regexp, 0, len(p.Transcript.PathRegexes))
	for _, pattern := range p.Transcript.PathRegexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		regexes = append(regexes, re)
	}
	return transcript.AgentHint{
		ID:                  p.ID,
		PathRegexes:         regexes,
		LastEventIDFields:   p.Transcript.LastEventIDFields,
		TitlePrefixEnabled:  p.Transcript.TitlePrefix.Enabled,
		TitlePrefixJSONPath: p.Transcript.TitlePrefix.JSONPath,
	}
}
