package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/swerve_computer/internal/app"
	"github.com/relabs-tech/swerve_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./swerve_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting swerve-computer status display (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
