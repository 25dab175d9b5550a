// Command seed-catalog fills a development database with plausible supplier
// records: uneven naming, embedded product codes, accents, missing prices.
// A share of the records are deliberate duplicates of one another so that
// deduplication passes have work to do.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"

	"panelcatalog/catalog"
	"panelcatalog/config"
	"panelcatalog/database"
)

var (
	materials = []string{"MDF", "aggloméré", "contreplaqué", "OSB", "mélaminé", "stratifié"}
	finishes  = []string{"mat", "brillant", "satiné", "structuré", "bois brossé"}
	decors    = []string{"Chêne Naturel", "Hêtre Clair", "Béton Gris", "Blanc Premium", "Noyer Foncé", "Érable Doré"}
	decorCats = []string{"bois", "uni", "pierre", "fantaisie"}
	products  = []string{"panneau", "plan de travail", "crédence", "champ de porte", "tablette"}
	suppliers = []string{"unilin", "egger", "kronospan", "swisskrono"}

	thicknessSets = [][]float64{{8}, {10}, {12}, {16}, {18}, {19}, {22}, {8, 10, 12}, {16, 18, 19}}
	lengths       = []int{2050, 2440, 2500, 2800, 3050}
	widths        = []int{925, 1200, 1220, 1250, 2070}
)

func main() {
	count := flag.Int("count", 500, "number of base records to generate")
	dupRate := flag.Int("dup-rate", 10, "generate one duplicate per this many records")
	slug := flag.String("catalogue", "demo", "catalogue slug to seed")
	seed := flag.Int64("seed", 0, "gofakeit seed, 0 for random")
	flag.Parse()

	gofakeit.Seed(*seed)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Seed] Configuration error: %v", err)
	}

	db, err := database.Open(cfg.DatabasePath, database.DefaultOptions())
	if err != nil {
		log.Fatalf("[Seed] Failed to open database %s: %v", cfg.DatabasePath, err)
	}
	defer db.Close()

	ctx := context.Background()

	cat, err := db.GetCatalogueBySlug(ctx, *slug)
	var catalogueID catalog.CatalogueID
	if err != nil {
		catalogueID, err = db.CreateCatalogue(ctx, *slug, gofakeit.Company())
		if err != nil {
			log.Fatalf("[Seed] Failed to create catalogue %q: %v", *slug, err)
		}
		log.Printf("[Seed] Created catalogue %q (id %d)", *slug, catalogueID)
	} else {
		catalogueID = cat.ID
	}

	inserted := 0
	for i := 0; i < *count; i++ {
		rec := randomRecord(*slug, i)
		panel := catalog.TranslateCandidate(rec, catalogueID)
		if err := db.InsertPanel(ctx, &panel); err != nil {
			log.Printf("[Seed] Skipping record %q: %v", rec.Reference, err)
			continue
		}
		inserted++

		// Periodically insert a looser rendition of the same product, same
		// embedded code under a different reference shape.
		if *dupRate > 0 && i%*dupRate == 0 {
			dup := duplicateOf(rec)
			dp := catalog.TranslateCandidate(dup, catalogueID)
			if err := db.InsertPanel(ctx, &dp); err != nil {
				log.Printf("[Seed] Skipping duplicate %q: %v", dup.Reference, err)
				continue
			}
			inserted++
		}
	}

	log.Printf("[Seed] Inserted %d records into catalogue %q", inserted, *slug)
}

func randomRecord(slug string, i int) catalog.CandidateRecord {
	code := 100000 + gofakeit.Number(0, 899999)
	supplier := pick(suppliers)
	decor := pick(decors)
	material := pick(materials)

	rec := catalog.CandidateRecord{
		CatalogueSlug:   slug,
		Reference:       fmt.Sprintf("%d-%s", code, supplier),
		Name:            fmt.Sprintf("Panneau %s %s %d", material, decor, code),
		Material:        material,
		Finish:          pick(finishes),
		DecorName:       decor,
		DecorCategory:   pick(decorCats),
		ProductType:     pick(products),
		Description:     gofakeit.Sentence(8),
		ManufacturerRef: fmt.Sprintf("%s-%06d", supplier, code),
		ThicknessMM:     pick(thicknessSets),
		LengthMM:        pick(lengths),
		WidthMM:         pick(widths),
		WaterResistant:  gofakeit.Bool(),
		FireResistant:   i%7 == 0,
	}

	// Prices show up unevenly in supplier feeds.
	if gofakeit.Bool() {
		p := round2(gofakeit.Float64Range(8, 120))
		rec.PriceM2 = &p
	}
	if gofakeit.Bool() {
		p := round2(gofakeit.Float64Range(15, 400))
		rec.PricePanel = &p
	}
	if gofakeit.Number(0, 4) == 0 {
		rec.ImageURL = gofakeit.URL()
	}
	return rec
}

// duplicateOf builds a second rendition of the same product: same embedded
// code, different reference shape, with some fields missing and others
// present that the original lacked.
func duplicateOf(rec catalog.CandidateRecord) catalog.CandidateRecord {
	dup := rec
	dup.Reference = fmt.Sprintf("BCB-%s", rec.Reference)
	dup.LengthMM = 0
	dup.WidthMM = 0
	dup.ThicknessMM = nil
	dup.Description = ""
	if dup.PriceM2 == nil {
		p := round2(gofakeit.Float64Range(8, 120))
		dup.PriceM2 = &p
	}
	return dup
}

func pick[T any](options []T) T {
	return options[gofakeit.Number(0, len(options)-1)]
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}
