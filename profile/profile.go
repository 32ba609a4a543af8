// Package profile loads and validates the YAML files that carry a session's
// aliases, triggers, event scripts, variable seeds and settings.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// EnvProfile names the environment variable consulted when no path is given.
const EnvProfile = "MUDLARK_PROFILE"

// fileRule mirrors model.Rule but lets "enabled" default to true when absent.
type fileRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Command string `yaml:"command"`
	Enabled *bool  `yaml:"enabled"`
}

type fileScript struct {
	Name    string `yaml:"name"`
	Event   string `yaml:"event"`
	Command string `yaml:"command"`
	Enabled *bool  `yaml:"enabled"`
}

type fileProfile struct {
	Name      string           `yaml:"name"`
	Aliases   []fileRule       `yaml:"aliases"`
	Triggers  []fileRule       `yaml:"triggers"`
	Scripts   []fileScript     `yaml:"scripts"`
	Variables []model.Variable `yaml:"variables"`
	Settings  model.Settings   `yaml:"settings"`
}

func enabled(b *bool) bool { return b == nil || *b }

func (f fileProfile) toModel() model.Profile {
	p := model.Profile{
		Name:      f.Name,
		Variables: f.Variables,
		Settings:  f.Settings,
	}
	convert := func(in []fileRule) []model.Rule {
		out := make([]model.Rule, 0, len(in))
		for _, r := range in {
			out = append(out, model.Rule{Name: r.Name, Pattern: r.Pattern, Command: r.Command, Enabled: enabled(r.Enabled)})
		}
		return out
	}
	p.Aliases = convert(f.Aliases)
	p.Triggers = convert(f.Triggers)
	for _, s := range f.Scripts {
		p.Scripts = append(p.Scripts, model.Script{Name: s.Name, Event: s.Event, Command: s.Command, Enabled: enabled(s.Enabled)})
	}
	return p
}

// Decode parses a profile document. Unknown keys are rejected so typos in
// hand-written profiles surface instead of silently dropping rules.
func Decode(r io.Reader) (model.Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fileProfile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Profile{}, nil
		}
		return model.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return f.toModel(), nil
}

// Load reads the profile at path.
func Load(path string) (model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return model.Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Resolve returns path, or the EnvProfile value when path is empty.
func Resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(EnvProfile); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no profile given: pass --profile or set %s", EnvProfile)
}
