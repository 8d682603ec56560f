package main

import (
	"flag"
	"log"
	"os"

	"CardioRisk/internal/di"
	"CardioRisk/pkg/config"
)

// ingester drains the prediction-events topic into ClickHouse or SQLite.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.ValidateIngest(); err != nil {
		log.Fatalf("ingest config invalid: %v", err)
	}

	ing, err := di.InitializeIngester(cfg)
	if err != nil {
		log.Fatalf("ingester initialization failed: %v", err)
	}

	if err := ing.Run(); err != nil {
		log.Printf("ingester error: %v", err)
		os.Exit(1)
	}
}
