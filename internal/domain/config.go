package domain

// Payment provider identifiers resolvable by the provider factory.
const (
	ProviderSandbox = "sandbox"
	// ProviderNone is the explicit "not yet enabled" provider variant.
	ProviderNone = "none"
)

// PlatformConfig is the fee/hold-policy/feature-flag document. It is injected
// as a snapshot at the start of each operation rather than read as ambient
// global state, so concurrent config changes never split a single operation.
type PlatformConfig struct {
	FeeTiers []FeeTier `json:"fee_tiers" yaml:"fee_tiers"`

	ApprovalWindowDays int `json:"approval_window_days" yaml:"approval_window_days"`
	AdminAttentionDays int `json:"admin_attention_days" yaml:"admin_attention_days"`

	ReliabilityWeights    ReliabilityWeights    `json:"reliability_weights" yaml:"reliability_weights"`
	ReliabilityThresholds ReliabilityThresholds `json:"reliability_thresholds" yaml:"reliability_thresholds"`

	PaymentProvider string `json:"payment_provider" yaml:"payment_provider"`

	MilestonesEnabled       bool `json:"milestones_enabled" yaml:"milestones_enabled"`
	EstimateDepositsEnabled bool `json:"estimate_deposits_enabled" yaml:"estimate_deposits_enabled"`

	AutoReleaseBatchSize    int `json:"auto_release_batch_size" yaml:"auto_release_batch_size"`
	AdminAttentionBatchSize int `json:"admin_attention_batch_size" yaml:"admin_attention_batch_size"`

	ConciergeIntakeFeeCents int64 `json:"concierge_intake_fee_cents" yaml:"concierge_intake_fee_cents"`

	// PlanPriceCents is the per-cycle invoice amount by plan. Plans absent
	// from the map are invoiced by the provider alone.
	PlanPriceCents map[string]int64 `json:"plan_price_cents" yaml:"plan_price_cents"`
}

// DefaultPlatformConfig is the fallback document used when no override is
// stored for the environment.
func DefaultPlatformConfig() PlatformConfig {
	standardMax := int64(500000)
	starterMax := int64(99999)
	return PlatformConfig{
		FeeTiers: []FeeTier{
			{
				Name:       "starter",
				MinCents:   0,
				MaxCents:   &starterMax,
				PercentBps: 900,
			},
			{
				Name:       "standard",
				MinCents:   100000,
				MaxCents:   &standardMax,
				PercentBps: 700,
				PlanOverrides: map[string]PlanFeeOverride{
					"contractor_pro": {PercentBps: 500},
				},
			},
			{
				Name:       "large",
				MinCents:   500001,
				PercentBps: 500,
			},
		},
		ApprovalWindowDays: 7,
		AdminAttentionDays: 14,
		ReliabilityWeights: ReliabilityWeights{
			ShowUp:       1,
			ResponseTime: 1,
			Dispute:      1,
			Proof:        1,
			OnTime:       1,
		},
		ReliabilityThresholds: ReliabilityThresholds{
			AutoRelease: 80,
			LargeJobs:   75,
			HighTicket:  85,
		},
		PaymentProvider:         ProviderSandbox,
		MilestonesEnabled:       true,
		EstimateDepositsEnabled: true,
		AutoReleaseBatchSize:    200,
		AdminAttentionBatchSize: 200,
		ConciergeIntakeFeeCents: 4900,
		PlanPriceCents: map[string]int64{
			"contractor_pro":   2900,
			"contractor_elite": 4900,
		},
	}
}
