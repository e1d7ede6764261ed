// ./cmd/capture/main.go
//
// Raw-stream capture front end. Reads the continuous reading stream the rig
// emits while stepping through the commanded distances (over serial or
// MQTT), detects the plateau staircase, and writes a samples CSV for
// cmd/analyze.
//
// Run:
//
//	go run ./cmd/capture -sensor "43220065 ROS1" -source mqtt -o samples.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/relabs-tech/range_analyzer/internal/app"
	"github.com/relabs-tech/range_analyzer/internal/config"
)

func main() {
	configPath := flag.String("config", "range_config.txt", "path to configuration file")
	sensor := flag.String("sensor", "", "sensor name to record (required)")
	source := flag.String("source", "serial", "capture source: serial or mqtt")
	output := flag.String("o", "samples.csv", "output samples CSV path")
	maxSamples := flag.Int("max", 0, "stop after this many raw readings (0 = until signal)")
	publish := flag.Bool("publish", false, "also publish detected samples to MQTT")
	flag.Parse()

	if *sensor == "" {
		fmt.Fprintln(os.Stderr, "error: -sensor is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Printf("starting capture for sensor %s (source: %s)", *sensor, *source)
	if err := app.RunCapture(*sensor, *source, *output, *maxSamples, *publish); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
