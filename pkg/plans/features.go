package plans

import "fmt"

// FeatureKey identifies a gated product capability
type FeatureKey string

const (
	FeatureAdvancedAnalytics    FeatureKey = "advanced_analytics"
	FeatureBrandPulse           FeatureKey = "brand_pulse"
	FeatureCreativeInsights     FeatureKey = "creative_insights"
	FeatureAutomationRules      FeatureKey = "automation_rules"
	FeatureShopifyIntegration   FeatureKey = "shopify_integration"
	FeatureERPIntegration       FeatureKey = "erp_integration"
	FeaturePrioritySupport      FeatureKey = "priority_support"
	FeatureAICMO                FeatureKey = "aicmo"
	FeatureVideoGeneration      FeatureKey = "video_generation"
	FeatureUnlimitedCampaigns   FeatureKey = "unlimited_campaigns"
	FeatureUnlimitedAssets      FeatureKey = "unlimited_assets"
	FeatureUnlimitedTeamMembers FeatureKey = "unlimited_team_members"
)

// LimitType distinguishes boolean feature flags from numeric caps
type LimitType string

const (
	LimitTypeBoolean LimitType = "boolean"
	LimitTypeNumeric LimitType = "numeric"
)

// FeatureDefinition describes a gated capability and the tier that unlocks it
type FeatureDefinition struct {
	Key          FeatureKey `json:"key"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	RequiredTier Tier       `json:"required_tier"`
	LimitType    LimitType  `json:"limit_type"`
	LimitKey     LimitKey   `json:"limit_key,omitempty"`
}

var featureDefinitions = map[FeatureKey]FeatureDefinition{
	FeatureAdvancedAnalytics: {
		Key:          FeatureAdvancedAnalytics,
		Name:         "Advanced Analytics",
		Description:  "In-depth performance analytics and reporting",
		RequiredTier: TierPro,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitAdvancedAnalytics,
	},
	FeatureBrandPulse: {
		Key:          FeatureBrandPulse,
		Name:         "Brand Pulse",
		Description:  "Real-time brand health monitoring and alerts",
		RequiredTier: TierPro,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitBrandPulse,
	},
	FeatureCreativeInsights: {
		Key:          FeatureCreativeInsights,
		Name:         "Creative Insights",
		Description:  "AI-powered creative performance analysis",
		RequiredTier: TierPro,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitCreativeInsights,
	},
	FeatureAutomationRules: {
		Key:          FeatureAutomationRules,
		Name:         "Automation Rules",
		Description:  "Automated budget and campaign optimization rules",
		RequiredTier: TierPro,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitAutomationRules,
	},
	FeatureShopifyIntegration: {
		Key:          FeatureShopifyIntegration,
		Name:         "Shopify Integration",
		Description:  "Connect your Shopify store for seamless product syncing",
		RequiredTier: TierStarter,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitShopifyIntegration,
	},
	FeatureERPIntegration: {
		Key:          FeatureERPIntegration,
		Name:         "ERP Integration",
		Description:  "Connect to STORIS, Furniture Wizard, and other ERPs",
		RequiredTier: TierPro,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitERPIntegration,
	},
	FeaturePrioritySupport: {
		Key:          FeaturePrioritySupport,
		Name:         "Priority Support",
		Description:  "Dedicated support with guaranteed response times",
		RequiredTier: TierEnterprise,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitPrioritySupport,
	},
	FeatureAICMO: {
		Key:          FeatureAICMO,
		Name:         "AI CMO Assistant",
		Description:  "AI-powered marketing assistant",
		RequiredTier: TierFree,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitAICMO,
	},
	FeatureVideoGeneration: {
		Key:          FeatureVideoGeneration,
		Name:         "Video Generation",
		Description:  "AI-powered video content creation",
		RequiredTier: TierStarter,
		LimitType:    LimitTypeBoolean,
		LimitKey:     LimitVideoGeneration,
	},
	FeatureUnlimitedCampaigns: {
		Key:          FeatureUnlimitedCampaigns,
		Name:         "Unlimited Campaigns",
		Description:  "Create unlimited marketing campaigns",
		RequiredTier: TierPro,
		LimitType:    LimitTypeNumeric,
		LimitKey:     LimitMaxCampaignsPerMonth,
	},
	FeatureUnlimitedAssets: {
		Key:          FeatureUnlimitedAssets,
		Name:         "Unlimited Assets",
		Description:  "Store unlimited marketing assets",
		RequiredTier: TierEnterprise,
		LimitType:    LimitTypeNumeric,
		LimitKey:     LimitMaxAssetsTotal,
	},
	FeatureUnlimitedTeamMembers: {
		Key:          FeatureUnlimitedTeamMembers,
		Name:         "Unlimited Team Members",
		Description:  "Add unlimited team members to your account",
		RequiredTier: TierEnterprise,
		LimitType:    LimitTypeNumeric,
		LimitKey:     LimitMaxTeamMembers,
	},
}

// FeatureCategories groups feature keys for UI surfaces
var FeatureCategories = map[string][]FeatureKey{
	"analytics":    {FeatureAdvancedAnalytics, FeatureBrandPulse, FeatureCreativeInsights},
	"automation":   {FeatureAutomationRules},
	"integrations": {FeatureShopifyIntegration, FeatureERPIntegration},
	"limits":       {FeatureUnlimitedCampaigns, FeatureUnlimitedAssets, FeatureUnlimitedTeamMembers},
	"ai":           {FeatureAICMO, FeatureVideoGeneration},
	"support":      {FeaturePrioritySupport},
}

// GetFeatureDefinition returns the definition for a feature key.
// The second return value is false for unknown keys.
func GetFeatureDefinition(key FeatureKey) (FeatureDefinition, bool) {
	def, ok := featureDefinitions[key]
	return def, ok
}

// AllFeatures returns every feature definition
func AllFeatures() []FeatureDefinition {
	features := make([]FeatureDefinition, 0, len(featureDefinitions))
	for _, key := range allFeatureKeys {
		features = append(features, featureDefinitions[key])
	}
	return features
}

// allFeatureKeys fixes iteration order for AllFeatures
var allFeatureKeys = []FeatureKey{
	FeatureAdvancedAnalytics,
	FeatureBrandPulse,
	FeatureCreativeInsights,
	FeatureAutomationRules,
	FeatureShopifyIntegration,
	FeatureERPIntegration,
	FeaturePrioritySupport,
	FeatureAICMO,
	FeatureVideoGeneration,
	FeatureUnlimitedCampaigns,
	FeatureUnlimitedAssets,
	FeatureUnlimitedTeamMembers,
}

// RequiredTierForFeature returns the lowest tier whose limits grant the
// feature. Unknown or never-granted features default to enterprise; this is
// the documented permissive fallback, not an error.
func RequiredTierForFeature(feature FeatureKey) Tier {
	def, ok := featureDefinitions[feature]
	if !ok {
		return TierEnterprise
	}
	for _, tier := range tierOrder {
		limits := planLimits[tier]
		if def.LimitType == LimitTypeBoolean {
			if granted, ok := limits.Bool(def.LimitKey); ok && granted {
				return tier
			}
			continue
		}
		if limit, ok := limits.Numeric(def.LimitKey); ok && limit == Unlimited {
			return tier
		}
	}
	return TierEnterprise
}

// TierHasFeature reports whether a tier is entitled to a feature
func TierHasFeature(tier Tier, feature FeatureKey) bool {
	def, ok := featureDefinitions[feature]
	if !ok {
		return false
	}
	return IsTierHigherOrEqual(tier, def.RequiredTier)
}

// FeatureLimit returns the numeric cap a tier applies to a feature,
// or Unlimited when the feature is a boolean flag
func FeatureLimit(tier Tier, feature FeatureKey) int {
	def, ok := featureDefinitions[feature]
	if !ok || def.LimitType == LimitTypeBoolean {
		return Unlimited
	}
	limits, err := GetLimits(tier)
	if err != nil {
		return Unlimited
	}
	if value, ok := limits.Numeric(def.LimitKey); ok {
		return value
	}
	return Unlimited
}

// AvailableFeatures returns the feature keys a tier is entitled to
func AvailableFeatures(tier Tier) []FeatureKey {
	var features []FeatureKey
	for _, key := range allFeatureKeys {
		if TierHasFeature(tier, key) {
			features = append(features, key)
		}
	}
	return features
}

// LockedFeatures returns the feature keys only available on higher tiers
func LockedFeatures(tier Tier) []FeatureKey {
	var features []FeatureKey
	for _, key := range allFeatureKeys {
		if !TierHasFeature(tier, key) {
			features = append(features, key)
		}
	}
	return features
}

// UpgradeMessage renders the upgrade prompt text for a locked feature
func UpgradeMessage(feature FeatureKey) string {
	def, ok := featureDefinitions[feature]
	if !ok {
		return fmt.Sprintf("This feature is available on the %s plan and above.", planConfigs[TierEnterprise].Name)
	}
	config := planConfigs[def.RequiredTier]
	return fmt.Sprintf("%s is available on the %s plan and above.", def.Name, config.Name)
}
