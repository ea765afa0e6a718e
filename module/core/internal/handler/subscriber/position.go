package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

const topicPattern = "/fleet/device/+/position"

type trackerService interface {
	ProcessUpdate(ctx context.Context, pos *domain.PositionUpdate) error
}

// positionMessage uses pointer fields so a missing required field is
// distinguishable from a zero value; absent means rejected, not defaulted.
type positionMessage struct {
	DeviceID    *string  `json:"device_id"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	TimestampMs *int64   `json:"timestamp_ms"`
	Speed       *float64 `json:"speed"`
	Heading     *float64 `json:"heading"`
	Accuracy    *float64 `json:"accuracy"`
}

type PositionSubscriber struct {
	client  mqtt.Client
	tracker trackerService
}

func NewPositionSubscriber(client mqtt.Client, tracker trackerService) *PositionSubscriber {
	return &PositionSubscriber{client: client, tracker: tracker}
}

func (s *PositionSubscriber) Start() error {
	token := s.client.Subscribe(topicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *PositionSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw positionMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("rejected position on %s: %v", msg.Topic(), err)
		return
	}

	if err := validatePositionMessage(&raw); err != nil {
		log.Printf("rejected position on %s: %v", msg.Topic(), err)
		return
	}

	pos := &domain.PositionUpdate{
		DeviceID:  *raw.DeviceID,
		Lat:       *raw.Latitude,
		Lng:       *raw.Longitude,
		Timestamp: time.UnixMilli(*raw.TimestampMs),
		Speed:     raw.Speed,
		Heading:   raw.Heading,
		Accuracy:  raw.Accuracy,
	}

	if err := s.tracker.ProcessUpdate(context.Background(), pos); err != nil {
		log.Printf("process position for %s: %v", pos.DeviceID, err)
	}
}

func validatePositionMessage(msg *positionMessage) error {
	if msg.DeviceID == nil || *msg.DeviceID == "" {
		return fmt.Errorf("device_id: required")
	}
	if msg.Latitude == nil {
		return fmt.Errorf("latitude: required")
	}
	if msg.Longitude == nil {
		return fmt.Errorf("longitude: required")
	}
	if msg.TimestampMs == nil {
		return fmt.Errorf("timestamp_ms: required")
	}
	if *msg.Latitude < -90 || *msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if *msg.Longitude < -180 || *msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if *msg.TimestampMs <= 0 {
		return fmt.Errorf("timestamp_ms: must be positive")
	}
	return nil
}
