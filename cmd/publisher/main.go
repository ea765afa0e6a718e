package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Simulates a handful of devices walking in and out of a circle geofence
// centered on lower Manhattan.
const (
	fenceLat = 40.7128
	fenceLng = -74.0060
)

type positionMessage struct {
	DeviceID    string  `json:"device_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimestampMs int64   `json:"timestamp_ms"`
	Speed       float64 `json:"speed"`
	Heading     float64 `json:"heading"`
}

func randomDeviceID() string {
	// 15-digit IMEI-style id
	id := make([]byte, 15)
	for i := range id {
		id[i] = byte('0' + rand.Intn(10))
	}
	return string(id)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[1])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("geofence-mock-publisher")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	devicePool := make([]string, 5)
	for i := range devicePool {
		devicePool[i] = randomDeviceID()
	}

	log.Printf("connected to %s, publishing every %ds...", broker, intervalSec)
	log.Printf("device pool: %v", devicePool)

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	inside := make(map[string]bool)

	for range ticker.C {
		did := devicePool[rand.Intn(len(devicePool))]

		// Alternate each device between a point inside the fence and one
		// ~1.3km away so entries and exits keep firing.
		var lat, lng float64
		if inside[did] {
			lat = fenceLat + 0.017
			lng = fenceLng - 0.014
		} else {
			lat = fenceLat + (rand.Float64()-0.5)*0.001
			lng = fenceLng + (rand.Float64()-0.5)*0.001
		}
		inside[did] = !inside[did]

		msg := positionMessage{
			DeviceID:    did,
			Latitude:    lat,
			Longitude:   lng,
			TimestampMs: time.Now().UnixMilli(),
			Speed:       rand.Float64() * 60,
			Heading:     rand.Float64() * 360,
		}

		payload, _ := json.Marshal(msg)
		topic := fmt.Sprintf("/fleet/device/%s/position", did)

		token := client.Publish(topic, 1, false, payload)
		token.Wait()

		log.Printf("published to %s: %s", topic, payload)
	}
}
