package ruleengine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a rule file: a short YAML document
// listing one or more named patterns, replacing YARA's rule language
// with a declarative format this engine can actually compile.
type ruleFile struct {
	Rules []struct {
		Name    string   `yaml:"name"`
		Tags    []string `yaml:"tags"`
		Pattern string   `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadRules reads and parses every resolved rule file path into a flat
// list of Rule definitions, namespaced by file the way
// YaraProcessor._generate_rules keeps a filename-to-namespace mapping.
func LoadRules(paths []string) ([]*Rule, error) {
	var rules []*Rule
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ruleengine: read %q: %w", path, err)
		}
		var rf ruleFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("ruleengine: parse %q: %w", path, err)
		}
		for _, r := range rf.Rules {
			rules = append(rules, &Rule{Name: r.Name, Tags: r.Tags, Pattern: r.Pattern})
		}
	}
	return rules, nil
}
