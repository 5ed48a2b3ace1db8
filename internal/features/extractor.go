// Package features turns raw transactions into the fixed numeric vector
// consumed by both the rule engine and the anomaly model.
package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
)

// Destination-currency risk tiers. Membership is fixed; an unlisted
// currency scores tier 0.
var (
	HighRiskCurrencies = map[string]bool{
		"PHP": true, "INR": true, "BRL": true,
		"MXN": true, "VND": true, "IDR": true,
	}
	MediumRiskCurrencies = map[string]bool{
		"EUR": true, "GBP": true, "CAD": true,
		"AUD": true, "CHF": true,
	}
	LowRiskCurrencies = map[string]bool{
		"USD": true, "JPY": true, "CNY": true, "KRW": true,
	}
)

// SuspiciousKeywords are matched as case-insensitive substrings of the
// transaction purpose.
var SuspiciousKeywords = []string{"urgent", "emergency", "family_emergency"}

// Substring markers carried in user_id / device_fingerprint by the
// upstream onboarding pipeline.
const (
	NewUserMarker   = "new_user"
	NewDeviceMarker = "new_device"
)

// DefaultHour is used when the transaction carries no timestamp.
const DefaultHour = 12

// Extract maps a transaction to its feature vector. Absent optional fields
// resolve to fixed defaults; the only failure mode is a timestamp that is
// present but unparseable.
func Extract(tx *domain.TransactionData) (domain.FeatureVector, error) {
	var vec domain.FeatureVector

	vec[domain.FeatAmount] = tx.Amount
	vec[domain.FeatLogAmount] = math.Log10(tx.Amount + 1)
	if tx.Amount > 10000 {
		vec[domain.FeatHighAmount] = 1
	}
	vec[domain.FeatCurrencyRisk] = CurrencyRisk(tx.CurrencyTo)
	vec[domain.FeatPurposeHits] = float64(PurposeHits(tx.Purpose))

	hour, err := hourOf(tx.Timestamp)
	if err != nil {
		return vec, err
	}
	vec[domain.FeatHour] = float64(hour)
	if hour < 6 || hour > 22 {
		vec[domain.FeatOffHours] = 1
	}

	if tx.CurrencyFrom != tx.CurrencyTo {
		vec[domain.FeatCrossBorder] = 1
	}
	if strings.Contains(tx.UserID, NewUserMarker) {
		vec[domain.FeatNewUser] = 1
	}
	if strings.Contains(tx.DeviceFingerprint, NewDeviceMarker) {
		vec[domain.FeatNewDevice] = 1
	}

	return vec, nil
}

// CurrencyRisk returns the tier of a destination currency:
// high = 3, medium = 2, low = 1, unlisted = 0.
func CurrencyRisk(currency string) float64 {
	switch {
	case HighRiskCurrencies[currency]:
		return 3
	case MediumRiskCurrencies[currency]:
		return 2
	case LowRiskCurrencies[currency]:
		return 1
	default:
		return 0
	}
}

// PurposeHits counts suspicious keyword substrings in the purpose text.
func PurposeHits(purpose string) int {
	lower := strings.ToLower(purpose)
	hits := 0
	for _, kw := range SuspiciousKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

// hourOf extracts the hour of day from an ISO-8601 timestamp.
// Empty timestamps default to midday rather than erroring.
func hourOf(ts string) (int, error) {
	if ts == "" {
		return DefaultHour, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Hour(), nil
		}
	}
	return 0, fmt.Errorf("parse timestamp %q: unsupported format", ts)
}
