package models

// PackUnit is the resolved measurement unit of a listing's pack size.
type PackUnit string

const (
	PackUnitGram       PackUnit = "g"
	PackUnitKilogram   PackUnit = "kg"
	PackUnitMilliliter PackUnit = "ml"
	PackUnitLiter      PackUnit = "l"
	PackUnitCount      PackUnit = "unit"
	PackUnitNone       PackUnit = ""
)

// FeatureProfile is the structured view of one raw name.
// Derived deterministically; recomputed whenever the name changes.
type FeatureProfile struct {
	Tokens            map[string]struct{}
	PackAmount        *float64
	PackUnit          PackUnit
	AuxiliaryCodes    map[int]struct{}
	DealBreakerTokens map[string]struct{}
}

// HasPack reports whether both a pack amount and unit were resolved.
func (p *FeatureProfile) HasPack() bool {
	return p.PackAmount != nil && p.PackUnit != PackUnitNone
}
