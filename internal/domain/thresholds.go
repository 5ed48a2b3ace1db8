package domain

import (
	"errors"
	"fmt"
)

// ErrThresholdUpdate marks a rejected threshold update. The previous
// configuration is retained whenever an update is rejected.
var ErrThresholdUpdate = errors.New("invalid threshold update")

// RiskThresholds are the ordered classification boundaries on the 0-10
// fraud score. A score below Medium is low risk; [Medium, High) is medium;
// [High, Critical) is high; >= Critical is critical.
type RiskThresholds struct {
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

// DefaultThresholds returns the documented defaults: 3 / 6 / 8.
func DefaultThresholds() RiskThresholds {
	return RiskThresholds{Medium: 3.0, High: 6.0, Critical: 8.0}
}

// Validate rejects non-monotonic or out-of-range threshold sets.
func (t RiskThresholds) Validate() error {
	if t.Medium < 0 {
		return fmt.Errorf("%w: medium threshold must be non-negative", ErrThresholdUpdate)
	}
	if t.Medium >= t.High {
		return fmt.Errorf("%w: medium (%.2f) must be below high (%.2f)", ErrThresholdUpdate, t.Medium, t.High)
	}
	if t.High >= t.Critical {
		return fmt.Errorf("%w: high (%.2f) must be below critical (%.2f)", ErrThresholdUpdate, t.High, t.Critical)
	}
	return nil
}

// Classify maps a combined score to a risk level.
func (t RiskThresholds) Classify(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Merge applies a partial override keyed by level name and returns the
// candidate threshold set. Unknown keys are rejected; the receiver is not
// modified.
func (t RiskThresholds) Merge(partial map[string]float64) (RiskThresholds, error) {
	out := t
	for key, value := range partial {
		switch key {
		case "medium":
			out.Medium = value
		case "high":
			out.High = value
		case "critical":
			out.Critical = value
		case "low":
			// Low has no boundary of its own; it is everything below medium.
			if value != 0 {
				return t, fmt.Errorf("%w: low threshold is fixed at 0", ErrThresholdUpdate)
			}
		default:
			return t, fmt.Errorf("%w: unknown level %q", ErrThresholdUpdate, key)
		}
	}
	if err := out.Validate(); err != nil {
		return t, err
	}
	return out, nil
}
