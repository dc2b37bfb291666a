package main

import (
	"flag"
	"log"
	"os"

	"NetflowWatch/internal/di"
	"NetflowWatch/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s clickhouse=%t redis=%t kafka=%t memory=%s",
		cfg.Environment, cfg.ClickHouse.Enabled, cfg.Redis.Enabled, cfg.Kafka.Enabled, cfg.Agent.Memory.Backend)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal, or until the agent loses its lock)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
