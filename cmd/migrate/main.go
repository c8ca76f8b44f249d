package main

import (
	"analyticaos/internal/config" // Custom import path (Config)
	"analyticaos/internal/db"     // Custom import path (Database)
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	db.Migrate(cfg.DSN())
}
