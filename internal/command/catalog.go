// Package command turns named actions and project settings into shell
// command lines for the xcede CLI.
package command

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExecutable is the build CLI every built-in action drives.
const DefaultExecutable = "xcede"

// Action maps a user-facing verb to an xcede subcommand.
type Action struct {
	Name        string   `yaml:"name" json:"name"`
	Subcommand  string   `yaml:"subcommand" json:"subcommand"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Args        []string `yaml:"args,omitempty" json:"args,omitempty"`
	// Formatter is piped after the command unless the settings name one.
	Formatter string `yaml:"formatter,omitempty" json:"formatter,omitempty"`
}

// Catalog is the set of actions a runner exposes.
type Catalog struct {
	Executable string   `yaml:"executable,omitempty"`
	Actions    []Action `yaml:"actions"`
}

// DefaultCatalog returns the built-in actions.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Executable: DefaultExecutable,
		Actions: []Action{
			{Name: "build", Subcommand: "build", Description: "Build the project"},
			{Name: "run", Subcommand: "run", Description: "Run the last build"},
			{Name: "build-and-run", Subcommand: "buildrun", Description: "Build, then run"},
			{Name: "test", Subcommand: "test", Description: "Run the test suite"},
		},
	}
}

// ParseCatalog decodes YAML and layers it over the built-in actions.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}

	catalog := DefaultCatalog()
	if file.Executable != "" {
		catalog.Executable = file.Executable
	}
	for i, action := range file.Actions {
		action.Name = strings.TrimSpace(action.Name)
		if action.Name == "" {
			return nil, fmt.Errorf("action %d: missing name", i)
		}
		if action.Subcommand == "" {
			action.Subcommand = action.Name
		}
		catalog.put(action)
	}
	return catalog, nil
}

// LoadCatalog reads an actions file. An empty path yields the built-ins.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return catalog, nil
}

func (c *Catalog) Lookup(name string) (Action, bool) {
	for _, action := range c.Actions {
		if action.Name == name {
			return action, true
		}
	}
	return Action{}, false
}

// Names returns action names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Actions))
	for _, action := range c.Actions {
		names = append(names, action.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) put(action Action) {
	for i := range c.Actions {
		if c.Actions[i].Name == action.Name {
			c.Actions[i] = action
			return
		}
	}
	c.Actions = append(c.Actions, action)
}
