// Package rules loads CAT's rule files: markdown documents with a YAML
// frontmatter block declaring which audience (subagent names, file path
// globs) the rule applies to, concatenated into SessionStart/SubagentStart
// additionalContext for matching agents. Frontmatter parsing uses
// gopkg.in/yaml.v3, the frontmatter-in-markdown convention the wider example
// pack's GitHub-Actions-workflow tooling uses for its own agentic-workflow
// front matter.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is a rule file's declared audience.
type Frontmatter struct {
	SubAgents []string `yaml:"subAgents"`
	Paths     []string `yaml:"paths"`
}

// Rule is one loaded rule file.
type Rule struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

const frontmatterDelim = "---"

// Load reads every *.md file directly under dir (non-recursive — CAT's
// rule files live flat in .claude/cat/rules/) and parses its frontmatter.
// A file with no frontmatter block is loaded with an empty Frontmatter,
// meaning it applies to every audience.
func Load(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading rules dir: %w", err)
	}

	var rules []Rule
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule %s: %w", name, err)
		}
		rule, err := parseRule(path, string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing rule %s: %w", name, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseRule(path, content string) (Rule, error) {
	rule := Rule{Path: path}

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		rule.Body = strings.TrimSpace(content)
		return rule, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		rule.Body = strings.TrimSpace(content)
		return rule, nil
	}

	fmText := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(fmText), &rule.Frontmatter); err != nil {
		return Rule{}, fmt.Errorf("invalid frontmatter: %w", err)
	}

	rule.Body = strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return rule, nil
}

// Audience describes the agent a rule set is being evaluated for.
type Audience struct {
	SubAgent string // "" for the main agent
	Path     string // file path relevant to the current operation, "" if none
}

// Applies reports whether rule applies to audience. A rule with no declared
// subAgents/paths applies to everyone; a rule with either list populated
// applies only when audience matches at least one entry in every non-empty
// list (subAgents AND paths must both match, when both are declared).
func (r Rule) Applies(a Audience) bool {
	if len(r.Frontmatter.SubAgents) > 0 {
		if !matchesAny(r.Frontmatter.SubAgents, a.SubAgent) {
			return false
		}
	}
	if len(r.Frontmatter.Paths) > 0 {
		if a.Path == "" || !matchesAnyGlob(r.Frontmatter.Paths, a.Path) {
			return false
		}
	}
	return true
}

func matchesAny(candidates []string, value string) bool {
	for _, c := range candidates {
		if c == value {
			return true
		}
	}
	return false
}

func matchesAnyGlob(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, path); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

// Concatenate joins the bodies of every rule in rules applying to audience,
// separated by a blank line, for use as SessionStart/SubagentStart
// additionalContext.
func Concatenate(rules []Rule, audience Audience) string {
	var parts []string
	for _, r := range rules {
		if r.Applies(audience) && strings.TrimSpace(r.Body) != "" {
			parts = append(parts, strings.TrimSpace(r.Body))
		}
	}
	return strings.Join(parts, "\n\n")
}
