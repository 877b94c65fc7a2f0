package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is the sam.yaml file: the assistants this deployment drives and the
// tools exposed to them.
type Project struct {
	Assistants []Assistant       `yaml:"assistants"`
	Tools      []ToolDeclaration `yaml:"tools"`
	// Channels maps a Slack channel id to an assistant name. Channels without
	// an entry use the first assistant.
	Channels map[string]string `yaml:"channels"`

	dir string
}

type Assistant struct {
	Name         string   `yaml:"name"`
	AssistantID  string   `yaml:"assistant_id"`
	Instructions []string `yaml:"instructions"`
	Project      string   `yaml:"project"`
}

// ToolDeclaration binds a tool name to a built-in implementation path.
type ToolDeclaration struct {
	Name                   string `yaml:"name"`
	Path                   string `yaml:"path"`
	AdditionalInstructions string `yaml:"additional_instructions"`
}

// LoadProject reads and validates the project file at path.
// A missing file yields an empty project.
func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, nil
		}
		return Project{}, fmt.Errorf("reading project file: %w", err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("parsing project file %s: %w", path, err)
	}
	p.dir = filepath.Dir(path)

	seen := make(map[string]bool)
	for i, a := range p.Assistants {
		if a.Name == "" || a.AssistantID == "" {
			return Project{}, fmt.Errorf("assistant #%d: name and assistant_id are required", i+1)
		}
		if seen[a.Name] {
			return Project{}, fmt.Errorf("duplicate assistant %q", a.Name)
		}
		seen[a.Name] = true
	}
	for channel, name := range p.Channels {
		if !seen[name] {
			return Project{}, fmt.Errorf("channel %s references unknown assistant %q", channel, name)
		}
	}
	for i, t := range p.Tools {
		if t.Name == "" || t.Path == "" {
			return Project{}, fmt.Errorf("tool #%d: name and path are required", i+1)
		}
	}

	return p, nil
}

// AssistantFor returns the assistant serving a Slack channel.
func (p Project) AssistantFor(channelID string) (Assistant, bool) {
	if len(p.Assistants) == 0 {
		return Assistant{}, false
	}
	if name, ok := p.Channels[channelID]; ok {
		for _, a := range p.Assistants {
			if a.Name == name {
				return a, true
			}
		}
	}
	return p.Assistants[0], true
}

// SystemPrompt concatenates the assistant's instruction files, resolved
// relative to the project file.
func (p Project) SystemPrompt(a Assistant) (string, error) {
	parts := make([]string, 0, len(a.Instructions))
	for _, name := range a.Instructions {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading instructions for %s: %w", a.Name, err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}
