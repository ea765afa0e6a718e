package core

import (
	"database/sql"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Timiochukwu/iothub-geofence/module/core/internal/broadcast"
	handler "github.com/Timiochukwu/iothub-geofence/module/core/internal/handler/http"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/handler/subscriber"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database/postgres"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/publisher/rabbitmq"
	"github.com/Timiochukwu/iothub-geofence/module/core/service"
)

type Module struct {
	RegistrySvc *service.RegistryService
	EventSvc    *service.EventService
	TrackerSvc  *service.TrackerService

	hub        *broadcast.Hub
	geofenceH  *handler.GeofenceHandler
	eventH     *handler.EventHandler
	wsH        *handler.WSHandler
	subscriber *subscriber.PositionSubscriber
}

func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client) (*Module, error) {
	geofenceRepo := postgres.NewGeofenceRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	deviceRepo := postgres.NewDeviceRepo(db)

	notificationPub, err := rabbitmq.NewNotificationPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("notification publisher: %w", err)
	}

	hub := broadcast.NewHub()
	broadcastSvc := service.NewBroadcastService(hub, notificationRepo, notificationPub)
	registrySvc := service.NewRegistryService(geofenceRepo, broadcastSvc)
	eventSvc := service.NewEventService(eventRepo, geofenceRepo)
	trackerSvc := service.NewTrackerService(geofenceRepo, eventSvc, deviceRepo, broadcastSvc)

	return &Module{
		RegistrySvc: registrySvc,
		EventSvc:    eventSvc,
		TrackerSvc:  trackerSvc,
		hub:         hub,
		geofenceH:   handler.NewGeofenceHandler(registrySvc),
		eventH:      handler.NewEventHandler(eventSvc),
		wsH:         handler.NewWSHandler(hub),
		subscriber:  subscriber.NewPositionSubscriber(mqttClient, trackerSvc),
	}, nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.geofenceH.Register(r)
	m.eventH.Register(r)
	m.wsH.Register(r)
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}
