package main

import (
	"flag"
	"log"
	"os"

	"CardioRisk/internal/di"
	"CardioRisk/pkg/config"
)

// app serves POST /predict and GET /model-info until SIGINT or SIGTERM.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	modelPath := flag.String("model", "", "override model.path")
	port := flag.Int("port", 0, "override server.port")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
