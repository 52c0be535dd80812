package domain

// PlatformPolicy is the reward rule set for one platform.
type PlatformPolicy struct {
	Platform    Platform
	Enabled     bool
	Amount      int64 // Fixed reward, minor units
	MaxAmount   int64 // Cap for variable rewards; zero means Amount is used
	AutoApprove bool
	Dedup       bool
}

// Variable reports whether the reward is supplied per submission instead of fixed.
func (p PlatformPolicy) Variable() bool {
	return p.Amount == 0 && p.MaxAmount > 0
}

// PolicyTable maps platforms to their reward policy.
type PolicyTable map[Platform]PlatformPolicy

// Lookup returns the policy for an enabled platform.
func (t PolicyTable) Lookup(p Platform) (PlatformPolicy, bool) {
	policy, ok := t[p]
	if !ok || !policy.Enabled {
		return PlatformPolicy{}, false
	}
	return policy, true
}
