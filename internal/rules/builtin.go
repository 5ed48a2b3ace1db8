package rules

import "github.com/lucylow/coral-rush-sub001/internal/domain"

// BuiltinRules returns the default fraud rule table. The engine seeds the
// database with these on first start; operators can tune or replace them at
// runtime through the rules API.
//
// Amount tiers are mutually exclusive: the highest applicable threshold
// wins. The same holds for the currency tiers.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "amount-very-high",
			Name:        "Very High Amount",
			Description: "Transfers above 100,000 in source units",
			Version:     "1.0.0",
			Expression:  "amount > 100000.0",
			Score:       3.0,
			Factor:      "very_high_amount",
			Enabled:     true,
		},
		{
			ID:          "amount-high",
			Name:        "High Amount",
			Description: "Transfers in the 50,000-100,000 band",
			Version:     "1.0.0",
			Expression:  "amount > 50000.0 && amount <= 100000.0",
			Score:       2.0,
			Factor:      "high_amount",
			Enabled:     true,
		},
		{
			ID:          "amount-medium",
			Name:        "Medium Amount",
			Description: "Transfers in the 10,000-50,000 band",
			Version:     "1.0.0",
			Expression:  "amount > 10000.0 && amount <= 50000.0",
			Score:       1.0,
			Factor:      "medium_amount",
			Enabled:     true,
		},
		{
			ID:          "currency-high-risk",
			Name:        "High Risk Destination Currency",
			Description: "Destination currency is in the high-risk corridor set",
			Version:     "1.0.0",
			Expression:  "currency_risk == 3.0",
			Score:       2.0,
			Factor:      "high_risk_currency",
			Enabled:     true,
		},
		{
			ID:          "currency-medium-risk",
			Name:        "Medium Risk Destination Currency",
			Description: "Destination currency is in the medium-risk corridor set",
			Version:     "1.0.0",
			Expression:  "currency_risk == 2.0",
			Score:       1.0,
			Factor:      "medium_risk_currency",
			Enabled:     true,
		},
		{
			ID:          "purpose-suspicious",
			Name:        "Suspicious Purpose",
			Description: "Purpose text matches urgency or emergency keywords",
			Version:     "1.0.0",
			Expression:  "purpose_hits > 0.0",
			Score:       1.5,
			Factor:      "suspicious_purpose",
			Enabled:     true,
		},
		{
			ID:          "off-hours",
			Name:        "Off Hours Transaction",
			Description: "Initiated before 06:00 or after 22:00",
			Version:     "1.0.0",
			Expression:  "off_hours",
			Score:       0.5,
			Factor:      "off_hours_transaction",
			Enabled:     true,
		},
		{
			ID:          "cross-border",
			Name:        "Cross Border Transfer",
			Description: "Source and destination currencies differ",
			Version:     "1.0.0",
			Expression:  "cross_border",
			Score:       0.5,
			Factor:      "cross_border",
			Enabled:     true,
		},
		{
			ID:          "new-user",
			Name:        "New User",
			Description: "User account carries the new-user onboarding marker",
			Version:     "1.0.0",
			Expression:  "new_user",
			Score:       1.0,
			Factor:      "new_user",
			Enabled:     true,
		},
		{
			ID:          "new-device",
			Name:        "New Device",
			Description: "Device fingerprint carries the new-device marker",
			Version:     "1.0.0",
			Expression:  "new_device",
			Score:       0.5,
			Factor:      "new_device",
			Enabled:     true,
		},
		{
			ID:          "suspicious-ip",
			Name:        "Suspicious IP Prefix",
			Description: "Source IP falls in a flagged address range",
			Version:     "1.0.0",
			Expression:  `ip.startsWith("10.0.")`,
			Score:       1.0,
			Factor:      "suspicious_ip",
			Enabled:     true,
		},
	}
}
