// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/range_analyzer/internal/config"
	"github.com/relabs-tech/range_analyzer/internal/detector"
	"github.com/relabs-tech/range_analyzer/internal/ingest"
	"github.com/relabs-tech/range_analyzer/internal/sample"
)

// rawReading is the MQTT payload the rig publishes while sweeping.
type rawReading struct {
	Sensor  string  `json:"sensor,omitempty"`
	Reading float64 `json:"reading"`
}

// RunCapture acquires a raw reading stream for one sensor, detects the
// plateau staircase against the commanded distances, and writes a samples
// CSV that cmd/analyze accepts. Capture stops at maxSamples readings (if
// positive), on end of stream, or on SIGINT/SIGTERM.
func RunCapture(sensor, source, output string, maxSamples int, publish bool) error {
	cfg := config.Get()
	if len(cfg.CommandedDistances) == 0 {
		return fmt.Errorf("COMMANDED_DISTANCES is not configured; capture cannot assign plateau distances")
	}

	var (
		readings []float64
		err      error
	)
	switch source {
	case "serial":
		readings, err = captureSerial(cfg, maxSamples)
	case "mqtt":
		readings, err = captureMQTT(cfg, sensor, maxSamples)
	default:
		return fmt.Errorf("unknown capture source %q (want serial or mqtt)", source)
	}
	if err != nil {
		return err
	}
	log.Printf("capture: collected %d raw readings", len(readings))

	samples, err := detector.Detect(sensor, readings, cfg.CommandedDistances,
		cfg.NoiseThreshold, cfg.MinPlateauSamples)
	if err != nil {
		return err
	}
	log.Printf("capture: detected %d plateaus", len(samples))

	if err := ingest.WriteFile(output, sensor, samples); err != nil {
		return err
	}
	log.Printf("capture: wrote samples to %s", output)

	if publish {
		if err := publishSamples(cfg, samples); err != nil {
			return err
		}
		log.Printf("capture: published samples to %s", cfg.TopicSamples)
	}
	return nil
}

// captureSerial reads one numeric reading per line from the rig's UART.
func captureSerial(cfg *config.Config, maxSamples int) ([]float64, error) {
	serialOpts := serial.OpenOptions{
		PortName:        cfg.SerialPort,
		BaudRate:        uint(cfg.SerialBaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.SerialPort, err)
	}
	defer port.Close()
	log.Printf("capture: serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	values := make(chan float64)
	errc := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(port)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errc <- err
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			v, err := strconv.ParseFloat(line, 64)
			if err != nil {
				// partial line or rig chatter; skip
				continue
			}
			values <- v
		}
	}()

	var readings []float64
	for {
		select {
		case <-sigc:
			log.Printf("capture: stopped by signal")
			return readings, nil
		case err := <-errc:
			if len(readings) > 0 {
				log.Printf("capture: stream ended: %v", err)
				return readings, nil
			}
			return nil, fmt.Errorf("serial read error: %w", err)
		case v := <-values:
			readings = append(readings, v)
			if maxSamples > 0 && len(readings) >= maxSamples {
				return readings, nil
			}
		}
	}
}

// captureMQTT subscribes to the raw topic and collects readings for the
// selected sensor. Payloads without a sensor field are accepted for any
// sensor.
func captureMQTT(cfg *config.Config, sensor string, maxSamples int) ([]float64, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCapture)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("capture: connected to MQTT broker at %s", cfg.MQTTBroker)

	values := make(chan float64, 64)
	token := client.Subscribe(cfg.TopicRaw, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r rawReading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("capture: raw payload unmarshal error: %v", err)
			return
		}
		if r.Sensor != "" && r.Sensor != sensor {
			return
		}
		values <- r.Reading
	})
	token.Wait()
	if token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("capture: subscribed to %s", cfg.TopicRaw)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	var readings []float64
	for {
		select {
		case <-sigc:
			log.Printf("capture: stopped by signal")
			return readings, nil
		case v := <-values:
			readings = append(readings, v)
			if maxSamples > 0 && len(readings) >= maxSamples {
				return readings, nil
			}
		}
	}
}

func publishSamples(cfg *config.Config, samples []sample.Sample) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCapture + "-pub")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	payload, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("samples marshal error: %w", err)
	}

	token := client.Publish(cfg.TopicSamples, 0, true, payload)
	token.Wait()
	return token.Error()
}
