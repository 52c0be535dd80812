package service

import (
	"fmt"

	"engagement-rewards/config"
	"engagement-rewards/internal/core/domain"
	"engagement-rewards/pkg/money"
)

// NewPolicyTable converts the rewards configuration into a policy table.
func NewPolicyTable(cfg config.RewardsConfig) (domain.PolicyTable, error) {
	table := make(domain.PolicyTable, len(cfg.Platforms))
	for name, pc := range cfg.Platforms {
		platform := domain.Platform(name)
		if !platform.Valid() {
			return nil, fmt.Errorf("rewards.platforms: unknown platform %q", name)
		}

		policy := domain.PlatformPolicy{
			Platform:    platform,
			Enabled:     pc.Enabled,
			AutoApprove: pc.AutoApprove,
			Dedup:       pc.Dedup,
		}
		var err error
		if pc.Amount != "" {
			if policy.Amount, err = money.Parse(pc.Amount); err != nil {
				return nil, fmt.Errorf("rewards.platforms.%s.amount: %w", name, err)
			}
		}
		if pc.MaxAmount != "" {
			if policy.MaxAmount, err = money.Parse(pc.MaxAmount); err != nil {
				return nil, fmt.Errorf("rewards.platforms.%s.max_amount: %w", name, err)
			}
		}
		if policy.Amount < 0 || policy.MaxAmount < 0 {
			return nil, fmt.Errorf("rewards.platforms.%s: amounts must not be negative", name)
		}
		if policy.Enabled && policy.Amount == 0 && policy.MaxAmount == 0 {
			return nil, fmt.Errorf("rewards.platforms.%s: amount or max_amount is required", name)
		}
		table[platform] = policy
	}
	return table, nil
}
