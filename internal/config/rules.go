package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// RulesFile is the on-disk shape of the manual merge rule list
type RulesFile struct {
	Rules []models.MergeRule `yaml:"rules"`
}

// LoadMergeRules reads and validates manual merge rules from a YAML file.
// An empty path yields no rules.
func LoadMergeRules(path string) ([]models.MergeRule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	return ParseMergeRules(data)
}

// ParseMergeRules decodes a rules document and validates it
func ParseMergeRules(data []byte) ([]models.MergeRule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if result := ValidateRules(file.Rules); result.HasErrors() {
		return nil, fmt.Errorf("%s", result.Error())
	}
	return file.Rules, nil
}

// ValidateRules checks that every rule names a primary, lists at least one
// alternate and never lists its own primary as an alternate.
func ValidateRules(rules []models.MergeRule) *ValidationResult {
	result := &ValidationResult{Valid: true}
	seen := make(map[string]int)

	for i, rule := range rules {
		primary := strings.ToLower(strings.TrimSpace(rule.PrimaryLogin))
		if primary == "" {
			result.AddError("rule %d: primary_login is required", i)
			continue
		}
		if len(rule.AlternateLogins)+len(rule.AlternateEmails)+len(rule.AlternateNames) == 0 {
			result.AddError("rule %d (%s): at least one alternate login, email or name is required", i, rule.PrimaryLogin)
		}
		for _, alt := range rule.AlternateLogins {
			if strings.EqualFold(strings.TrimSpace(alt), primary) {
				result.AddError("rule %d (%s): primary login listed as its own alternate", i, rule.PrimaryLogin)
			}
		}
		if prev, ok := seen[primary]; ok {
			result.AddWarning("rules %d and %d share primary %s", prev, i, rule.PrimaryLogin)
		} else {
			seen[primary] = i
		}
	}

	return result
}
