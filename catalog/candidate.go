package catalog

import "strings"

// TranslateCandidate converts a scraped CandidateRecord into a Panel owned
// by the given catalogue. Text fields are whitespace-normalized here;
// canonical code and search fields are derived later by the pipeline
// stages, not at ingestion.
func TranslateCandidate(rec CandidateRecord, catalogueID CatalogueID) Panel {
	p := Panel{
		CatalogueID:     catalogueID,
		Reference:       cleanText(rec.Reference),
		Name:            cleanText(rec.Name),
		Material:        cleanText(rec.Material),
		Finish:          cleanText(rec.Finish),
		DecorName:       cleanText(rec.DecorName),
		DecorCategory:   cleanText(rec.DecorCategory),
		ProductType:     cleanText(rec.ProductType),
		Description:     cleanText(rec.Description),
		ManufacturerRef: cleanText(rec.ManufacturerRef),
		ImageURL:        strings.TrimSpace(rec.ImageURL),
		LengthMM:        rec.LengthMM,
		WidthMM:         rec.WidthMM,
		PriceM2:         rec.PriceM2,
		PricePanel:      rec.PricePanel,
		PriceML:         rec.PriceML,
		WaterResistant:  rec.WaterResistant,
		FireResistant:   rec.FireResistant,
		Active:          true,
	}

	if len(rec.ThicknessMM) > 0 {
		p.ThicknessMM = append([]float64(nil), rec.ThicknessMM...)
		p.DefaultThicknessMM = rec.ThicknessMM[0]
	}

	return p
}

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
