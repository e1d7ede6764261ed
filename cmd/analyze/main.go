// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/analyze/main.go
//
// Batch calibration-range analysis: ingest a sweep CSV, evaluate every
// calibration scenario for every sensor, rank the scenarios, and emit the
// report (console table, JSON file, charts, optional run history, optional
// MQTT publish for the web viewer).
//
// Run:
//
//	go run ./cmd/analyze -data sweep.csv
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lmittmann/tint"

	"github.com/relabs-tech/range_analyzer/internal/analyzer"
	"github.com/relabs-tech/range_analyzer/internal/config"
	"github.com/relabs-tech/range_analyzer/internal/ingest"
	"github.com/relabs-tech/range_analyzer/internal/report"
	"github.com/relabs-tech/range_analyzer/internal/sample"
	"github.com/relabs-tech/range_analyzer/internal/scenario"
	"github.com/relabs-tech/range_analyzer/internal/store"
)

func main() {
	configPath := flag.String("config", "range_config.txt", "path to configuration file")
	dataPath := flag.String("data", "", "path to sweep CSV (required)")
	dbPath := flag.String("db", "", "optional SQLite run-history path")
	charts := flag.Bool("charts", true, "render chart PNGs")
	publish := flag.Bool("publish", false, "publish the report to the MQTT results topic")
	flag.Parse()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	))

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "error: -data is required")
		flag.Usage()
		os.Exit(2)
	}

	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", *configPath)
		config.InitGlobalDefaults()
	} else if err := config.InitGlobal(*configPath); err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	cfg := config.Get()

	tables, err := ingest.ReadFile(*dataPath, cfg.MaxDistance)
	if err != nil {
		slog.Error("failed to ingest sweep data", "err", err)
		os.Exit(1)
	}
	slog.Info("sweep data loaded", "path", *dataPath, "sensors", len(tables))

	scenarios := scenario.Defaults()
	eval := sample.Range{Min: cfg.EvalRangeMin, Max: cfg.EvalRangeMax}
	if cfg.ScenarioFile != "" {
		scenarios, eval, err = scenario.LoadFile(cfg.ScenarioFile)
		if err != nil {
			slog.Error("failed to load scenario file", "err", err)
			os.Exit(1)
		}
		slog.Info("scenario file loaded", "path", cfg.ScenarioFile, "scenarios", len(scenarios))
	}

	rep, err := analyzer.Analyze(*dataPath, tables, scenarios, eval, slog.Default())
	if err != nil {
		slog.Error("analysis failed", "err", err)
		os.Exit(1)
	}

	report.WriteSummary(os.Stdout, rep)

	jsonPath, err := report.WriteJSON(cfg.ReportDir, rep)
	if err != nil {
		slog.Error("failed to write JSON report", "err", err)
		os.Exit(1)
	}
	slog.Info("report written", "path", jsonPath)

	if *charts {
		paths, err := report.RenderCharts(cfg.ChartDir, rep, tables)
		if err != nil {
			slog.Error("failed to render charts", "err", err)
			os.Exit(1)
		}
		for _, p := range paths {
			slog.Info("chart written", "path", p)
		}
	}

	if *dbPath != "" {
		s, err := store.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open run history", "err", err)
			os.Exit(1)
		}
		runID, err := s.SaveReport(rep)
		s.Close()
		if err != nil {
			slog.Error("failed to save run", "err", err)
			os.Exit(1)
		}
		slog.Info("run stored", "db", *dbPath, "run_id", runID)
	}

	if *publish {
		if err := publishReport(cfg, rep); err != nil {
			slog.Error("failed to publish report", "err", err)
			os.Exit(1)
		}
		slog.Info("report published", "topic", cfg.TopicResults)
	}
}

// publishReport sends the report JSON, retained, so the web viewer picks it
// up even when it connects later.
func publishReport(cfg *config.Config, rep *analyzer.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDAnalyze)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	token := client.Publish(cfg.TopicResults, 0, true, payload)
	token.Wait()
	return token.Error()
}
