package domain

// FeatureCount is the fixed width of the feature vector. The field order
// below is load-bearing: trained models expect it and changing it breaks
// score reproducibility across process runs.
const FeatureCount = 10

// Feature vector field indices.
const (
	FeatAmount       = iota // raw amount
	FeatLogAmount           // log10(amount + 1)
	FeatHighAmount          // amount > 10,000 flag
	FeatCurrencyRisk        // destination currency tier: 3/2/1/0
	FeatPurposeHits         // suspicious keyword matches in purpose
	FeatHour                // hour of day 0-23
	FeatOffHours            // hour < 6 or hour > 22 flag
	FeatCrossBorder         // currency_from != currency_to flag
	FeatNewUser             // user_id carries the new-user marker
	FeatNewDevice           // device_fingerprint carries the new-device marker
)

// FeatureVector is the fixed numeric representation of a transaction.
type FeatureVector [FeatureCount]float64

// Slice returns the vector as a float64 slice for model input.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}
