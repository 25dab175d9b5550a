package main

import (
	"log"

	"github.com/joho/godotenv"

	"panelcatalog/classification"
	"panelcatalog/config"
	"panelcatalog/database"
	"panelcatalog/pipeline"
	"panelcatalog/quality"
	"panelcatalog/search"
	"panelcatalog/server"
)

func main() {
	log.Println("[Server] Starting catalog reconciliation server...")

	// .env is optional, real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[Server] Loaded configuration overrides from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Configuration error: %v", err)
	}

	db, err := database.Open(cfg.DatabasePath, database.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to open catalog database %s: %v", cfg.DatabasePath, err)
	}
	defer db.Close()
	log.Printf("[Server] Catalog database ready: %s", cfg.DatabasePath)

	engines, err := classification.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load classification rules from %s: %v", cfg.RulesPath, err)
	}
	log.Printf("[Server] Loaded %d classification domains from %s", len(engines), cfg.RulesPath)

	pl, err := pipeline.New(db, engines, pipeline.Config{
		TrustOrder:    cfg.TrustOrder,
		DefaultDomain: cfg.DefaultDomain,
		Reindex: search.BatchOptions{
			PageSize:        cfg.ReindexPageSize,
			Workers:         cfg.ReindexWorkers,
			WritesPerSecond: cfg.ReindexWriteRate,
		},
	})
	if err != nil {
		log.Fatalf("[Server] Failed to build pipeline: %v", err)
	}

	srv := server.New(pl, quality.NewAnalyzer(db))

	addr := ":" + cfg.Port
	log.Printf("[Server] Listening on %s", addr)
	if err := srv.Run(addr); err != nil {
		log.Fatalf("[Server] Server stopped: %v", err)
	}
}
