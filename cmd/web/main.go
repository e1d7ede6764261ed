// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/range_analyzer/internal/app"
	"github.com/relabs-tech/range_analyzer/internal/config"
)

func main() {
	configPath := flag.String("config", "range_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting range-analyzer web server (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: run cmd/analyze with -publish for the viewer to receive reports")

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
