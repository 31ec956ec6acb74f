// Package similarity provides string and contributor-record comparison
// primitives used by identity resolution.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// EditDistance returns the single-character insert/delete/substitute distance
// between a and b. Comparison is case-sensitive; callers lowercase first.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Similarity normalizes EditDistance into [0,1]. Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(EditDistance(a, b))/float64(longest)
}

// CrossField compares two contributors across login, canonical name and email.
//
// An exact case-insensitive email match short-circuits to 1.0. Otherwise the
// result is the maximum of login/login, name/name, login/name and name/login
// similarity, so any strongly resembling pair of fields is enough. Absent
// fields never participate.
func CrossField(c1, c2 models.Contributor) float64 {
	e1, e2 := strings.ToLower(c1.EmailValue()), strings.ToLower(c2.EmailValue())
	if e1 != "" && e1 == e2 {
		return 1.0
	}

	l1, l2 := strings.ToLower(c1.LoginValue()), strings.ToLower(c2.LoginValue())
	n1, n2 := strings.ToLower(c1.CanonicalName), strings.ToLower(c2.CanonicalName)

	best := 0.0
	consider := func(a, b string) {
		if a == "" || b == "" {
			return
		}
		if s := Similarity(a, b); s > best {
			best = s
		}
	}

	consider(l1, l2)
	consider(n1, n2)
	consider(l1, n2)
	consider(n1, l2)

	return best
}
