// Package resolver turns an environment name and run flags into the
// RunSpec used by every execution attempt.
package resolver

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// CIRemoveKeywords strips keywords that reveal credentials from reports
// produced in CI.
var CIRemoveKeywords = []string{
	"name:*Sign In*",
	"name:*Get * Token*",
	"name:*Set Cookie*",
	"name:*Local Storage*",
}

// LookupFunc returns the value of an environment binding
type LookupFunc func(name string) (string, bool)

// Options are the user facing knobs that shape a run
type Options struct {
	Environment   string
	TargetPath    string
	OutputDir     string
	IncludeTags   []string
	ExcludeTags   []string
	RerunAttempts int
	FailFast      bool
	Visual        bool
	Reseed        bool
	Debug         bool
	CI            bool
	PrintKeywords bool
	Processes     int
	Timeout       time.Duration

	// Environments defaults to DefaultEnvironments
	Environments EnvironmentTable
	// Lookup defaults to os.LookupEnv
	Lookup LookupFunc
}

// Resolve validates opts and produces the RunSpec for the first attempt
func Resolve(opts Options) (types.RunSpec, error) {
	table := opts.Environments
	if table == nil {
		table = DefaultEnvironments()
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envName := strings.ToLower(strings.TrimSpace(opts.Environment))
	env, ok := table[envName]
	if !ok {
		return types.RunSpec{}, &ConfigError{
			Field:  "env",
			Reason: fmt.Sprintf("unknown environment %q, expected one of %s", opts.Environment, strings.Join(table.Names(), ", ")),
		}
	}
	if opts.RerunAttempts < 0 {
		return types.RunSpec{}, &ConfigError{Field: "rerun-attempts", Reason: "must not be negative"}
	}
	if opts.Processes < 0 {
		return types.RunSpec{}, &ConfigError{Field: "processes", Reason: "must not be negative"}
	}
	if opts.TargetPath == "" {
		return types.RunSpec{}, &ConfigError{Field: "tests", Reason: "a tests path is required"}
	}

	required := env.Bindings
	if len(required) == 0 {
		required = DefaultRequiredBindings
	}
	bindings := make(map[string]string, len(required))
	var missing []string
	for _, name := range required {
		value, ok := lookup(name)
		if !ok || value == "" {
			missing = append(missing, name)
			continue
		}
		bindings[name] = value
	}
	if len(missing) > 0 {
		return types.RunSpec{}, &ConfigError{Field: "environment", Missing: missing}
	}

	include := appendUnique(nil, env.Include...)
	exclude := appendUnique(nil, env.Exclude...)
	if opts.Reseed {
		include = appendUnique(include, TagSeedDataGeneration)
	} else {
		exclude = appendUnique(exclude, TagSeedDataGeneration)
	}
	include = appendUnique(include, opts.IncludeTags...)
	exclude = appendUnique(exclude, opts.ExcludeTags...)

	headless := "1"
	if opts.Visual {
		headless = "0"
	}

	spec := types.RunSpec{
		Environment:   envName,
		TargetPath:    opts.TargetPath,
		OutputDir:     opts.OutputDir,
		IncludeTags:   include,
		ExcludeTags:   exclude,
		Variables:     map[string]string{"headless": headless},
		Env:           bindings,
		SecretEnv:     secretBindings(required),
		Scope:         types.RunScopeFull,
		FailFast:      opts.FailFast,
		Visual:        opts.Visual,
		Debug:         opts.Debug,
		PrintKeywords: opts.PrintKeywords,
		Processes:     max(opts.Processes, 1),
		Timeout:       opts.Timeout,
		Attempt:       1,
	}
	if opts.CI {
		spec.RemoveKeywords = append([]string(nil), CIRemoveKeywords...)
	}
	return spec, nil
}

// SecretValues returns the values of the spec's secret bindings, for log
// redaction.
func SecretValues(spec types.RunSpec) []string {
	var values []string
	for _, name := range spec.SecretEnv {
		if v := spec.Env[name]; v != "" {
			values = append(values, v)
		}
	}
	return values
}

func secretBindings(names []string) []string {
	var secrets []string
	for _, name := range names {
		upper := strings.ToUpper(name)
		if strings.Contains(upper, "PASSWORD") || strings.Contains(upper, "TOKEN") || strings.Contains(upper, "SECRET") {
			secrets = append(secrets, name)
		}
	}
	return secrets
}

// appendUnique appends tags that are not already present, comparing case
// insensitively the way the test runner matches tags.
func appendUnique(dst []string, tags ...string) []string {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, tag) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, tag)
		}
	}
	return dst
}
