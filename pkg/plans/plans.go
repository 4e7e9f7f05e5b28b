package plans

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier represents a subscription plan tier
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tierOrder defines the total order used for all entitlement comparisons
var tierOrder = []Tier{TierFree, TierStarter, TierPro, TierEnterprise}

// Unlimited is the sentinel value for unlimited numeric limits.
// A monthly price of Unlimited means custom pricing (contact sales).
const Unlimited = -1

// UnknownTierError is returned when a tier string cannot be parsed
type UnknownTierError struct {
	Value string
}

func (e *UnknownTierError) Error() string {
	return "unknown plan tier: " + e.Value
}

// IsUnknownTier checks if an error is an unknown tier error
func IsUnknownTier(err error) bool {
	_, ok := err.(*UnknownTierError)
	return ok
}

// ParseTier parses a tier string, failing closed on unknown values
func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case TierFree:
		return TierFree, nil
	case TierStarter:
		return TierStarter, nil
	case TierPro:
		return TierPro, nil
	case TierEnterprise:
		return TierEnterprise, nil
	default:
		return "", &UnknownTierError{Value: value}
	}
}

// Rank returns the tier's index in the plan ordering, or -1 for unknown tiers
func (t Tier) Rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether the tier is one of the defined plan tiers
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// AllTiers returns the plan tiers in ascending order
func AllTiers() []Tier {
	tiers := make([]Tier, len(tierOrder))
	copy(tiers, tierOrder)
	return tiers
}

// IsTierHigherOrEqual reports whether tier a is at or above tier b in the plan ordering
func IsTierHigherOrEqual(a, b Tier) bool {
	return a.Rank() >= b.Rank()
}

// NextTier returns the next tier up from the current one.
// The second return value is false when there is no higher tier.
func NextTier(current Tier) (Tier, bool) {
	rank := current.Rank()
	if rank < 0 || rank >= len(tierOrder)-1 {
		return "", false
	}
	return tierOrder[rank+1], true
}

// Limits holds the feature flags and numeric caps for a plan tier.
// Numeric caps use Unlimited (-1) as the no-cap sentinel.
type Limits struct {
	MaxCampaignsPerMonth int `json:"max_campaigns_per_month"`
	MaxAssetsTotal       int `json:"max_assets_total"`
	MaxTeamMembers       int `json:"max_team_members"`
	MaxIntegrations      int `json:"max_integrations"`

	HasAdvancedAnalytics  bool `json:"has_advanced_analytics"`
	HasBrandPulse         bool `json:"has_brand_pulse"`
	HasCreativeInsights   bool `json:"has_creative_insights"`
	HasAutomationRules    bool `json:"has_automation_rules"`
	HasShopifyIntegration bool `json:"has_shopify_integration"`
	HasERPIntegration     bool `json:"has_erp_integration"`
	HasPrioritySupport    bool `json:"has_priority_support"`
	HasAICMO              bool `json:"has_aicmo"`
	HasVideoGeneration    bool `json:"has_video_generation"`
}

// LimitKey identifies a single field of Limits for dynamic lookups
type LimitKey string

const (
	LimitMaxCampaignsPerMonth LimitKey = "max_campaigns_per_month"
	LimitMaxAssetsTotal       LimitKey = "max_assets_total"
	LimitMaxTeamMembers       LimitKey = "max_team_members"
	LimitMaxIntegrations      LimitKey = "max_integrations"
	LimitAdvancedAnalytics    LimitKey = "has_advanced_analytics"
	LimitBrandPulse           LimitKey = "has_brand_pulse"
	LimitCreativeInsights     LimitKey = "has_creative_insights"
	LimitAutomationRules      LimitKey = "has_automation_rules"
	LimitShopifyIntegration   LimitKey = "has_shopify_integration"
	LimitERPIntegration       LimitKey = "has_erp_integration"
	LimitPrioritySupport      LimitKey = "has_priority_support"
	LimitAICMO                LimitKey = "has_aicmo"
	LimitVideoGeneration      LimitKey = "has_video_generation"
)

// Numeric returns the numeric cap for the key.
// The second return value is false for boolean flags and unknown keys.
func (l Limits) Numeric(key LimitKey) (int, bool) {
	switch key {
	case LimitMaxCampaignsPerMonth:
		return l.MaxCampaignsPerMonth, true
	case LimitMaxAssetsTotal:
		return l.MaxAssetsTotal, true
	case LimitMaxTeamMembers:
		return l.MaxTeamMembers, true
	case LimitMaxIntegrations:
		return l.MaxIntegrations, true
	default:
		return 0, false
	}
}

// Bool returns the boolean flag for the key.
// The second return value is false for numeric caps and unknown keys.
func (l Limits) Bool(key LimitKey) (bool, bool) {
	switch key {
	case LimitAdvancedAnalytics:
		return l.HasAdvancedAnalytics, true
	case LimitBrandPulse:
		return l.HasBrandPulse, true
	case LimitCreativeInsights:
		return l.HasCreativeInsights, true
	case LimitAutomationRules:
		return l.HasAutomationRules, true
	case LimitShopifyIntegration:
		return l.HasShopifyIntegration, true
	case LimitERPIntegration:
		return l.HasERPIntegration, true
	case LimitPrioritySupport:
		return l.HasPrioritySupport, true
	case LimitAICMO:
		return l.HasAICMO, true
	case LimitVideoGeneration:
		return l.HasVideoGeneration, true
	default:
		return false, false
	}
}

// Config holds the full plan definition for a tier
type Config struct {
	Tier        Tier   `json:"tier"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Prices in integer cents. Unlimited (-1) means custom pricing.
	MonthlyPriceCents int64 `json:"monthly_price_cents"`
	AnnualPriceCents  int64 `json:"annual_price_cents"`

	// AdSpendPercentage is the managed ad-spend fee rate as a fraction (0.02 == 2%)
	AdSpendPercentage float64 `json:"ad_spend_percentage"`

	Limits Limits `json:"limits"`

	// Features is the human-readable feature list for marketing surfaces
	Features []string `json:"features"`

	// Gateway price identifiers used at checkout (empty when not sold online)
	GatewayPriceID       string `json:"gateway_price_id,omitempty"`
	GatewayAnnualPriceID string `json:"gateway_annual_price_id,omitempty"`
}

// CustomPricing reports whether the plan is sold via manual invoicing
func (c Config) CustomPricing() bool {
	return c.MonthlyPriceCents == Unlimited
}

var planLimits = map[Tier]Limits{
	TierFree: {
		MaxCampaignsPerMonth: 5,
		MaxAssetsTotal:       50,
		MaxTeamMembers:       1,
		MaxIntegrations:      1,
		HasAICMO:             true,
	},
	TierStarter: {
		MaxCampaignsPerMonth:  20,
		MaxAssetsTotal:        500,
		MaxTeamMembers:        3,
		MaxIntegrations:       3,
		HasShopifyIntegration: true,
		HasAICMO:              true,
		HasVideoGeneration:    true,
	},
	TierPro: {
		MaxCampaignsPerMonth:  Unlimited,
		MaxAssetsTotal:        2000,
		MaxTeamMembers:        10,
		MaxIntegrations:       10,
		HasAdvancedAnalytics:  true,
		HasBrandPulse:         true,
		HasCreativeInsights:   true,
		HasAutomationRules:    true,
		HasShopifyIntegration: true,
		HasERPIntegration:     true,
		HasAICMO:              true,
		HasVideoGeneration:    true,
	},
	TierEnterprise: {
		MaxCampaignsPerMonth:  Unlimited,
		MaxAssetsTotal:        Unlimited,
		MaxTeamMembers:        Unlimited,
		MaxIntegrations:       Unlimited,
		HasAdvancedAnalytics:  true,
		HasBrandPulse:         true,
		HasCreativeInsights:   true,
		HasAutomationRules:    true,
		HasShopifyIntegration: true,
		HasERPIntegration:     true,
		HasPrioritySupport:    true,
		HasAICMO:              true,
		HasVideoGeneration:    true,
	},
}

var planConfigs = map[Tier]Config{
	TierFree: {
		Tier:              TierFree,
		Name:              "Free",
		Description:       "Get started with AI-powered marketing",
		MonthlyPriceCents: 0,
		AnnualPriceCents:  0,
		AdSpendPercentage: 0,
		Limits:            planLimits[TierFree],
		Features: []string{
			"5 campaigns per month",
			"50 assets",
			"1 team member",
			"Basic AICMO assistant",
			"1 ad platform integration",
			"Dashboard & reporting",
		},
	},
	TierStarter: {
		Tier:              TierStarter,
		Name:              "Starter",
		Description:       "For growing businesses ready to scale",
		MonthlyPriceCents: 9900,
		AnnualPriceCents:  95000,
		AdSpendPercentage: 0.02,
		Limits:            planLimits[TierStarter],
		Features: []string{
			"20 campaigns per month",
			"500 assets",
			"3 team members",
			"Shopify integration",
			"AI video generation",
			"3 ad platform integrations",
			"Email support",
		},
		GatewayPriceID:       "price_starter_monthly",
		GatewayAnnualPriceID: "price_starter_annual",
	},
	TierPro: {
		Tier:              TierPro,
		Name:              "Pro",
		Description:       "Advanced features for marketing teams",
		MonthlyPriceCents: 29900,
		AnnualPriceCents:  287000,
		AdSpendPercentage: 0.025,
		Limits:            planLimits[TierPro],
		Features: []string{
			"Unlimited campaigns",
			"2,000 assets",
			"10 team members",
			"Brand Pulse analytics",
			"Creative Insights",
			"Automation rules",
			"ERP integrations",
			"All ad platforms",
			"Priority email support",
		},
		GatewayPriceID:       "price_pro_monthly",
		GatewayAnnualPriceID: "price_pro_annual",
	},
	TierEnterprise: {
		Tier:              TierEnterprise,
		Name:              "Enterprise",
		Description:       "Custom solutions for large organizations",
		MonthlyPriceCents: Unlimited,
		AnnualPriceCents:  Unlimited,
		AdSpendPercentage: 0.015,
		Limits:            planLimits[TierEnterprise],
		Features: []string{
			"Everything in Pro",
			"Unlimited assets",
			"Unlimited team members",
			"Unlimited integrations",
			"Dedicated account manager",
			"Priority support & SLA",
			"Custom onboarding",
			"API access",
		},
	},
}

// GetConfig returns the plan configuration for a tier
func GetConfig(tier Tier) (Config, error) {
	config, ok := planConfigs[tier]
	if !ok {
		return Config{}, &UnknownTierError{Value: string(tier)}
	}
	return config, nil
}

// GetLimits returns the plan limits for a tier
func GetLimits(tier Tier) (Limits, error) {
	limits, ok := planLimits[tier]
	if !ok {
		return Limits{}, &UnknownTierError{Value: string(tier)}
	}
	return limits, nil
}

// CalculateAdSpendFee returns the platform fee for a spend amount at the
// tier's rate. No rounding is applied; callers round at the reporting edge.
func CalculateAdSpendFee(spend float64, tier Tier) float64 {
	config, ok := planConfigs[tier]
	if !ok {
		return 0
	}
	return spend * config.AdSpendPercentage
}

// IsUnlimited reports whether a numeric limit value means "no cap"
func IsUnlimited(value int) bool {
	return value == Unlimited
}

// FormatLimit renders a numeric limit for display
func FormatLimit(value int) string {
	if value == Unlimited {
		return "Unlimited"
	}
	return groupDigits(strconv.Itoa(value))
}

// groupDigits inserts thousands separators into a non-negative decimal string
func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPrice renders a cent price for display, handling custom pricing
func FormatPrice(cents int64) string {
	if cents == Unlimited {
		return "Contact sales"
	}
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// FormatPercent renders a fee fraction for display (0.025 -> "2.5%")
func FormatPercent(fraction float64) string {
	s := fmt.Sprintf("%.2f", fraction*100)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + "%"
}
