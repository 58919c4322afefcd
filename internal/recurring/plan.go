package recurring

import "strings"

// planTiers are the known maintenance plan tiers, in match order.
// "personalizado" is the legacy spelling of "custom".
var planTiers = []string{"starter", "standar", "avanzado", "custom", "personalizado"}

func normalizeTier(tier string) string {
	if tier == "personalizado" {
		return "custom"
	}
	return tier
}

// MaintenancePlanType resolves the plan tier of an invoiced maintenance line:
// first by exact tag match, then by substring match on the product name.
// Returns "" when nothing matches.
func MaintenancePlanType(tags []string, productName string) string {
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		for _, tier := range planTiers {
			if t == tier {
				return normalizeTier(tier)
			}
		}
	}
	name := strings.ToLower(productName)
	for _, tier := range planTiers {
		if strings.Contains(name, tier) {
			return normalizeTier(tier)
		}
	}
	return ""
}
