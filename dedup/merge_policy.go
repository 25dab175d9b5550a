package dedup

import "panelcatalog/catalog"

// PolicyKind says how a field is merged across a duplicate group.
type PolicyKind string

const (
	// FirstNonZero takes the first record in group order with a non-zero
	// value. Used for dimensional fields and boolean attributes, where a
	// false is indistinguishable from "not filled in" and any record in
	// the group asserting the attribute wins.
	FirstNonZero PolicyKind = "first_non_zero"
	// PreferNonNull keeps the survivor's value when present, otherwise the
	// first non-null value in group order. Used for prices and free text.
	PreferNonNull PolicyKind = "prefer_non_null"
	// TrustedNonNull takes the non-null value from the most trusted source
	// even when the survivor has one. Used for media and manufacturer
	// reference URLs, where supplier feeds routinely carry stale copies.
	TrustedNonNull PolicyKind = "trusted_non_null"
)

// FieldPolicy is one row of the merge policy table. The table is the whole
// policy: nothing about merging is decided anywhere else, so the policy is
// auditable and testable independent of any specific duplicate pair.
type FieldPolicy struct {
	Field string
	Kind  PolicyKind

	isEmpty  func(p *catalog.Panel) bool
	copyFrom func(dst, src *catalog.Panel)
}

// MergePolicyTable returns the per-field policy used by the deduplicator.
func MergePolicyTable() []FieldPolicy {
	return []FieldPolicy{
		{
			Field: "length_mm", Kind: FirstNonZero,
			isEmpty:  func(p *catalog.Panel) bool { return p.LengthMM == 0 },
			copyFrom: func(dst, src *catalog.Panel) { dst.LengthMM = src.LengthMM },
		},
		{
			Field: "width_mm", Kind: FirstNonZero,
			isEmpty:  func(p *catalog.Panel) bool { return p.WidthMM == 0 },
			copyFrom: func(dst, src *catalog.Panel) { dst.WidthMM = src.WidthMM },
		},
		{
			Field: "thickness_mm", Kind: FirstNonZero,
			isEmpty: func(p *catalog.Panel) bool { return len(p.ThicknessMM) == 0 },
			copyFrom: func(dst, src *catalog.Panel) {
				dst.ThicknessMM = append([]float64(nil), src.ThicknessMM...)
				dst.DefaultThicknessMM = src.DefaultThicknessMM
			},
		},
		{
			Field: "price_m2", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.PriceM2 == nil },
			copyFrom: func(dst, src *catalog.Panel) { dst.PriceM2 = src.PriceM2 },
		},
		{
			Field: "price_panel", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.PricePanel == nil },
			copyFrom: func(dst, src *catalog.Panel) { dst.PricePanel = src.PricePanel },
		},
		{
			Field: "price_ml", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.PriceML == nil },
			copyFrom: func(dst, src *catalog.Panel) { dst.PriceML = src.PriceML },
		},
		{
			Field: "name", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.Name == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.Name = src.Name },
		},
		{
			Field: "material", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.Material == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.Material = src.Material },
		},
		{
			Field: "finish", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.Finish == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.Finish = src.Finish },
		},
		{
			Field: "decor_name", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.DecorName == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.DecorName = src.DecorName },
		},
		{
			Field: "decor_category", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.DecorCategory == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.DecorCategory = src.DecorCategory },
		},
		{
			Field: "product_type", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.ProductType == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.ProductType = src.ProductType },
		},
		{
			Field: "water_resistant", Kind: FirstNonZero,
			isEmpty:  func(p *catalog.Panel) bool { return !p.WaterResistant },
			copyFrom: func(dst, src *catalog.Panel) { dst.WaterResistant = src.WaterResistant },
		},
		{
			Field: "fire_resistant", Kind: FirstNonZero,
			isEmpty:  func(p *catalog.Panel) bool { return !p.FireResistant },
			copyFrom: func(dst, src *catalog.Panel) { dst.FireResistant = src.FireResistant },
		},
		{
			Field: "description", Kind: PreferNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.Description == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.Description = src.Description },
		},
		{
			Field: "image_url", Kind: TrustedNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.ImageURL == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.ImageURL = src.ImageURL },
		},
		{
			Field: "manufacturer_ref", Kind: TrustedNonNull,
			isEmpty:  func(p *catalog.Panel) bool { return p.ManufacturerRef == "" },
			copyFrom: func(dst, src *catalog.Panel) { dst.ManufacturerRef = src.ManufacturerRef },
		},
	}
}
