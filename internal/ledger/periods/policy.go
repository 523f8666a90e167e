package periods

// OverridePolicy controls whether postings may land in closed periods.
type OverridePolicy string

const (
	// PolicyDeny refuses every posting into a closed period.
	PolicyDeny OverridePolicy = "deny"
	// PolicyAllowReversalsOnly admits reversing entries only.
	PolicyAllowReversalsOnly OverridePolicy = "allow_reversals_only"
	// PolicyAllowWithAudit admits any posting but audit-logs the override.
	PolicyAllowWithAudit OverridePolicy = "allow_with_audit"
)

// Valid reports whether the policy is a known value.
func (p OverridePolicy) Valid() bool {
	switch p {
	case PolicyDeny, PolicyAllowReversalsOnly, PolicyAllowWithAudit:
		return true
	}
	return false
}

// Allows reports whether a posting into a closed period may proceed.
func (p OverridePolicy) Allows(isReversal bool) bool {
	switch p {
	case PolicyAllowWithAudit:
		return true
	case PolicyAllowReversalsOnly:
		return isReversal
	}
	return false
}
