package identity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rohankatakam/reviewscout/internal/models"
)

var (
	// noreplyEmail matches platform-issued private addresses, with or without
	// the numeric user id prefix.
	noreplyEmail = regexp.MustCompile(`(?i)^(\d+\+)?[^@\s]+@users\.noreply\.github\.com$`)

	// platformLogin is 1-39 alphanumerics with interior hyphens only.
	platformLogin = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,37}[a-zA-Z0-9])?$`)
)

// PrimaryScore rates how likely a record is the canonical platform identity
func PrimaryScore(c models.Contributor) int {
	score := 0
	login := c.LoginValue()
	email := c.EmailValue()

	if email != "" && noreplyEmail.MatchString(email) {
		score += 100
	}
	if login != "" && platformLogin.MatchString(login) {
		score += 50
	}
	if email != "" {
		score += 30
	}
	if login != "" && len(login) <= 20 {
		score += 20
	}
	if strings.ContainsAny(login, "0123456789") {
		score += 15
	}
	// auto-normalized placeholders copy the canonical name into the login
	if login != "" && login == c.CanonicalName {
		score -= 25
	}

	return score
}

// ChoosePrimary returns the best-scoring member; ties keep group order.
func ChoosePrimary(group []models.Contributor) models.Contributor {
	if len(group) == 0 {
		return models.Contributor{}
	}

	ranked := make([]models.Contributor, len(group))
	copy(ranked, group)
	sort.SliceStable(ranked, func(i, j int) bool {
		return PrimaryScore(ranked[i]) > PrimaryScore(ranked[j])
	})
	return ranked[0]
}
