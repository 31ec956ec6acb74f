package identity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// maxRuleWorkers bounds concurrent rule evaluation
const maxRuleWorkers = 8

// ApplyManualRules matches every rule against contributors and returns one
// manual decision per alternate identity found. Rules whose primary login is
// absent, or left unevaluated by cancellation, are skipped and counted.
// Decisions keep rule order, and a duplicate claimed by an earlier rule is not
// claimed again.
func (r *Resolver) ApplyManualRules(ctx context.Context, rules []models.MergeRule, contributors []models.Contributor) ([]models.MergeDecision, int) {
	slots := make([][]models.MergeDecision, len(rules))
	missing := make([]bool, len(rules))
	evaluated := make([]bool, len(rules))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxRuleWorkers)

	for i, rule := range rules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decisions, ok := matchRule(rule, contributors)
			slots[i] = decisions
			missing[i] = !ok
			evaluated[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("manual rule evaluation cancelled", "error", err)
	}

	var out []models.MergeDecision
	claimed := make(map[string]bool)
	skipped := 0
	for i, decisions := range slots {
		if !evaluated[i] {
			skipped++
			r.logger.Warn("manual rule not evaluated, skipping",
				"primary_login", rules[i].PrimaryLogin)
			continue
		}
		if missing[i] {
			skipped++
			r.logger.Warn("manual rule primary not found, skipping",
				"primary_login", rules[i].PrimaryLogin)
			continue
		}
		for _, d := range decisions {
			if claimed[d.Duplicate.ID] {
				r.logger.Warn("contributor already claimed by an earlier rule",
					"duplicate_id", d.Duplicate.ID,
					"primary_login", rules[i].PrimaryLogin)
				continue
			}
			claimed[d.Duplicate.ID] = true
			out = append(out, d)
		}
	}

	return out, skipped
}

// matchRule reports false when the rule's primary login is not present
func matchRule(rule models.MergeRule, contributors []models.Contributor) ([]models.MergeDecision, bool) {
	var primary *models.Contributor
	for i := range contributors {
		if strings.EqualFold(contributors[i].LoginValue(), rule.PrimaryLogin) {
			primary = &contributors[i]
			break
		}
	}
	if primary == nil {
		return nil, false
	}

	logins := lowerSet(rule.AlternateLogins)
	emails := lowerSet(rule.AlternateEmails)
	names := lowerSet(rule.AlternateNames)

	notes := rule.Notes
	if notes == "" {
		notes = fmt.Sprintf("manual rule for %s", rule.PrimaryLogin)
	}

	var decisions []models.MergeDecision
	for _, c := range contributors {
		if c.ID == primary.ID {
			continue
		}
		login := strings.ToLower(c.LoginValue())
		email := strings.ToLower(c.EmailValue())
		name := strings.ToLower(c.CanonicalName)

		if (login != "" && logins[login]) || (email != "" && emails[email]) || (name != "" && names[name]) {
			decisions = append(decisions, models.MergeDecision{
				Primary:    *primary,
				Duplicate:  c,
				Similarity: 1.0,
				Priority:   models.PriorityManual,
				Notes:      notes,
			})
		}
	}

	return decisions, true
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}
