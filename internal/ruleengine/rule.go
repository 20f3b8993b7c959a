// Package ruleengine implements the declarative string/regex matching
// engine behind the matcher state machine. No Go YARA binding exists
// anywhere in the retrieved example pack, so the concrete implementation
// is grounded instead on the portable regexp2-based matcher shown in
// the praetorian-inc-titus PortableRegexpMatcher reference file,
// compiling each rule with dlclark/regexp2 and bounding pathological
// patterns with a match timeout.
package ruleengine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dlclark/regexp2"
)

// BlacklistRule is the sentinel rule name that, when matched alongside
// any other rule, causes the whole event to be discarded rather than
// reported — infobserve/processors/yara_processor.py's BLACKLIST_RULE.
const BlacklistRule = "BlacklistRule"

// Rule is one named pattern loaded from a rule file. Strings are
// sub-patterns within the rule; a rule "matches" when any one of its
// Strings matches.
type Rule struct {
	Name    string
	Tags    []string
	Pattern string
}

// StringMatch is a single matched substring within one rule hit.
type StringMatch struct {
	Identifier string
	Value      string
}

// RuleMatch is one rule's hit against a blob of content.
type RuleMatch struct {
	Rule    string
	Tags    []string
	Strings []StringMatch
}

// compiledRule pairs a Rule with its compiled regexp2 program.
type compiledRule struct {
	rule *Rule
	re   *regexp2.Regexp
}

// Engine holds the compiled set of rules ready to match content.
type Engine struct {
	compiled []compiledRule
	extVars  map[string]string
}

// ExtVars returns the external variable table this engine was last
// compiled with, so a caller building the next Engine can carry it
// forward unless a reload explicitly replaces it.
func (e *Engine) ExtVars() map[string]string { return e.extVars }

// matchTimeout bounds a single rule's evaluation against one blob,
// guarding against catastrophic backtracking the way the portable
// regexp2 matcher in the example pack does.
const matchTimeout = 5 * time.Second

// extVarPlaceholder is the substitution syntax a rule pattern uses to
// reference a value from the external variable table (yara_external_vars
// in config, YARA's external-variable binding in the upstream tool this
// engine stands in for) — e.g. a pattern containing `${env}` is compiled
// against extVars["env"]'s value.
func substituteExtVars(pattern string, extVars map[string]string) string {
	for name, value := range extVars {
		pattern = strings.ReplaceAll(pattern, "${"+name+"}", value)
	}
	return pattern
}

// Compile compiles rules into a ready-to-use Engine. Each pattern has
// any ${name} placeholder substituted from extVars first, then is tried
// in RE2 mode (linear-time, no backtracking); patterns that need
// Perl-only features (e.g. lookaround) fall back to regexp2's default
// mode. extVars changes only take effect on the next Compile — i.e. the
// next RECOMPILE — exactly like a real external-variable table.
func Compile(rules []*Rule, extVars map[string]string) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		pattern := substituteExtVars(r.Pattern, extVars)
		re, err := regexp2.Compile(pattern, regexp2.RE2|regexp2.Multiline)
		if err != nil {
			re, err = regexp2.Compile(pattern, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("ruleengine: compile rule %q: %w", r.Name, err)
			}
		}
		re.MatchTimeout = matchTimeout
		compiled = append(compiled, compiledRule{rule: r, re: re})
	}
	return &Engine{compiled: compiled, extVars: extVars}, nil
}

// Match evaluates every compiled rule against data and returns the
// rules that hit, each carrying its matched substrings.
func (e *Engine) Match(data []byte) []*RuleMatch {
	content := string(data)
	var results []*RuleMatch

	for _, cr := range e.compiled {
		m, err := cr.re.FindStringMatch(content)
		if err != nil || m == nil {
			continue
		}

		var strings []StringMatch
		for m != nil {
			strings = append(strings, StringMatch{Identifier: "$a", Value: m.String()})
			m, err = cr.re.FindNextMatch(m)
			if err != nil {
				break
			}
		}
		if len(strings) == 0 {
			continue
		}
		results = append(results, &RuleMatch{Rule: cr.rule.Name, Tags: cr.rule.Tags, Strings: strings})
	}
	return results
}

// HasBlacklist reports whether BlacklistRule fired among matches,
// mirroring YaraProcessor._has_blacklist.
func HasBlacklist(matches []*RuleMatch) bool {
	for _, m := range matches {
		if m.Rule == BlacklistRule {
			return true
		}
	}
	return false
}

// ResolveRuleFiles expands a list of rule file paths, some of which may
// contain globs, into a flat list of on-disk files — the Go analogue of
// infobserve/processors/yara_processor.py's
// Path(rule_file).is_file()-or-Path().glob(rule_file) resolution, using
// doublestar for ** support the stdlib's path/filepath.Glob lacks.
// FilepathGlob (not Glob+os.DirFS) is used so patterns may be absolute
// or relative to the process's working directory, matching how
// Python's Path.glob resolves either form.
func ResolveRuleFiles(patterns []string) ([]string, error) {
	var resolved []string
	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
			resolved = append(resolved, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("ruleengine: glob %q: %w", pattern, err)
		}
		resolved = append(resolved, matches...)
	}
	return resolved, nil
}
