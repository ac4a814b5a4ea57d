package resolver

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tags that are not tied to a single environment
const (
	TagSeedDataGeneration = "SeedDataGeneration"
	TagAltersData         = "AltersData"
)

// Environment describes which tagged tests may run against a deployment
type Environment struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// Bindings overrides DefaultRequiredBindings when set
	Bindings []string `yaml:"bindings,omitempty"`
}

// EnvironmentTable maps environment names to their tag rules
type EnvironmentTable map[string]Environment

// DefaultRequiredBindings must be present in the process environment before
// anything runs.
var DefaultRequiredBindings = []string{"PUBLIC_URL", "ADMIN_URL", "PUBLIC_AUTH_USER", "PUBLIC_AUTH_PASSWORD"}

// DefaultEnvironments returns the built in environment table
func DefaultEnvironments() EnvironmentTable {
	return EnvironmentTable{
		"local":   {Include: []string{"Local"}, Exclude: []string{"NotAgainstLocal"}},
		"dev":     {Include: []string{"Dev"}, Exclude: []string{"NotAgainstDev"}},
		"test":    {Include: []string{"Test"}, Exclude: []string{"NotAgainstTest", TagAltersData}},
		"preprod": {Include: []string{"Preprod"}, Exclude: []string{TagAltersData, "NotAgainstPreProd"}},
		"prod":    {Include: []string{"Prod"}, Exclude: []string{TagAltersData, "NotAgainstProd"}},
	}
}

// Names returns the environment names in sorted order
func (t EnvironmentTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type environmentsFile struct {
	Environments map[string]Environment `yaml:"environments"`
}

// LoadEnvironments reads an environments file and layers it over the
// built in table. Entries in the file replace built in entries of the same
// name.
func LoadEnvironments(path string) (EnvironmentTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading environments file: %w", err)
	}

	var file environmentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing environments file: %w", err)
	}

	table := DefaultEnvironments()
	for name, env := range file.Environments {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("environments file %s: empty environment name", path)
		}
		if len(env.Include) == 0 {
			return nil, fmt.Errorf("environments file %s: environment %q includes no tags", path, name)
		}
		table[name] = Environment{
			Include:  slices.Clone(env.Include),
			Exclude:  slices.Clone(env.Exclude),
			Bindings: slices.Clone(env.Bindings),
		}
	}
	return table, nil
}
