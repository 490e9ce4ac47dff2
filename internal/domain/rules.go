package domain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type RuleCombinator string

const (
	CombinatorAND RuleCombinator = "AND"
	CombinatorOR  RuleCombinator = "OR"
)

// one ordered keyword rule: keywords matched case-insensitively against the
// full ad name, combined with AND or OR
type CategoryRule struct {
	Keywords   []string       `yaml:"keywords" json:"keywords"`
	Combinator RuleCombinator `yaml:"combinator" json:"combinator"`
	Category   string         `yaml:"category" json:"category"`
}

// Matches evaluates the rule against a lowercased ad name.
func (r CategoryRule) Matches(lowerName string) bool {
	if len(r.Keywords) == 0 {
		return false
	}
	for _, kw := range r.Keywords {
		hit := strings.Contains(lowerName, strings.ToLower(kw))
		if r.Combinator == CombinatorOR && hit {
			return true
		}
		if r.Combinator != CombinatorOR && !hit {
			return false
		}
	}
	return r.Combinator != CombinatorOR
}

// CategoryRuleSet is an explicit, ordered rule table passed into the parser
// at construction. Order is part of the contract: the first satisfied rule
// wins, so more specific rules must precede generic ones.
type CategoryRuleSet struct {
	Rules []CategoryRule `yaml:"rules" json:"rules"`
}

// Categorize returns the first matching rule's category, or
// CategoryUncategorized when nothing matches.
func (s CategoryRuleSet) Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range s.Rules {
		if rule.Matches(lower) {
			return rule.Category
		}
	}
	return CategoryUncategorized
}

// LoadCategoryRules reads a rule set from a YAML file.
func LoadCategoryRules(path string) (CategoryRuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CategoryRuleSet{}, fmt.Errorf("failed to read category rules: %w", err)
	}

	var set CategoryRuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return CategoryRuleSet{}, fmt.Errorf("failed to parse category rules: %w", err)
	}

	if len(set.Rules) == 0 {
		return CategoryRuleSet{}, fmt.Errorf("category rule file %s contains no rules", path)
	}

	return set, nil
}

// DefaultCategoryRules returns the built-in rule table. Specific compound
// categories come before the generic ones they overlap with.
func DefaultCategoryRules() CategoryRuleSet {
	return CategoryRuleSet{Rules: []CategoryRule{
		{Keywords: []string{"play", "furniture"}, Combinator: CombinatorAND, Category: "Play Furniture"},
		{Keywords: []string{"play couch", "playcouch"}, Combinator: CombinatorOR, Category: "Play Furniture"},
		{Keywords: []string{"tumbling"}, Combinator: CombinatorOR, Category: "Tumbling Mats"},
		{Keywords: []string{"standing"}, Combinator: CombinatorOR, Category: "Standing Mats"},
		{Keywords: []string{"play mat", "playmat", "play"}, Combinator: CombinatorOR, Category: "Play Mats"},
		{Keywords: []string{"bundle"}, Combinator: CombinatorOR, Category: "Bundles"},
		{Keywords: []string{"gift"}, Combinator: CombinatorOR, Category: "Gift Cards"},
	}}
}
