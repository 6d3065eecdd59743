package entitlements

import (
	"strings"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// ParsePlan resolves a user supplied plan id. Matching is case-insensitive.
func ParsePlan(raw string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanFree:
		return PlanFree, true
	case PlanBasic:
		return PlanBasic, true
	case PlanPremium:
		return PlanPremium, true
	default:
		return "", false
	}
}

func (p Plan) String() string {
	return string(p)
}

// CanCreateSnippet reports whether a user with the given limit may store one
// more snippet.
func CanCreateSnippet(limit, used int64) bool {
	return used < limit
}

// Remaining never goes negative, even when a downgrade left the user above
// their new limit.
func Remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
