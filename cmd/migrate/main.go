package main

import (
	"fanpass/internal/config"
	"fanpass/internal/database"
	"fanpass/internal/logger"
)

func main() {
	logger.Init("info", "json")

	cfg, err := config.LoadDatabase()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		db.Close()
		logger.Fatal("Failed to run migrations", "error", err)
	}
}
