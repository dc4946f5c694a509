//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/flashmart/service-flashsale/internal/application"
	flashsaleEvents "github.com/flashmart/service-flashsale/internal/events"
	"github.com/flashmart/service-flashsale/internal/repository"
	"github.com/flashmart/service-flashsale/internal/scheduler"
	"github.com/flashmart/service-flashsale/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// flashsaleStack holds wired-up flash-sale service components.
type flashsaleStack struct {
	Reservations    *application.ReservationService
	Scheduler       *scheduler.ActivationScheduler
	Consumer        *flashsaleEvents.OrderEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_flashsale",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_flashsale sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.CampaignModel{},
		&repository.StockEntryModel{},
		&repository.ReservationModel{},
		&repository.UsageRecordModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, "flashsale.events", "order.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupFlashsaleStack wires up the full flash-sale service stack.
func setupFlashsaleStack(t *testing.T, db *gorm.DB, brokers []string) *flashsaleStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	campaignRepo := repository.NewCampaignRepository(db)
	stockRepo := repository.NewStockRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	producer := kafka.NewProducer(brokers, logger)

	reservationSvc := application.NewReservationService(
		campaignRepo, stockRepo, reservationRepo, usageRepo, producer, 0, logger)
	activationScheduler := scheduler.NewActivationScheduler(campaignRepo, stockRepo, producer, logger)

	groupID := fmt.Sprintf("test-flashsale-%s", uuid.New().String()[:8])
	consumer := flashsaleEvents.NewOrderEventConsumer(brokers, groupID, reservationSvc, logger)

	return &flashsaleStack{
		Reservations:    reservationSvc,
		Scheduler:       activationScheduler,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedActiveCampaign inserts an active campaign with one stock entry.
func seedActiveCampaign(t *testing.T, db *gorm.DB, productID int64, totalStock, perUserLimit int) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	campaignID := uuid.New()
	require.NoError(t, db.Create(&repository.CampaignModel{
		ID:        campaignID,
		Name:      "Integration Sale",
		Slug:      fmt.Sprintf("integration-sale-%s", uuid.New().String()[:8]),
		StartsAt:  now.Add(-time.Hour),
		EndsAt:    now.Add(time.Hour),
		Status:    "active",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error, "failed to seed campaign")

	require.NoError(t, db.Create(&repository.StockEntryModel{
		ID:              uuid.New(),
		CampaignID:      campaignID,
		ProductID:       productID,
		FlashPriceCents: 9900,
		TotalStock:      totalStock,
		PerUserLimit:    perUserLimit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error, "failed to seed stock entry")

	return campaignID
}

// seedPendingReservation inserts a pending reservation with its units already
// counted in the reserved column.
func seedPendingReservation(t *testing.T, db *gorm.DB, campaignID uuid.UUID, productID int64, quantity int, expiresAt time.Time) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	reservationID := uuid.New()
	require.NoError(t, db.Create(&repository.ReservationModel{
		ID:         reservationID,
		UserID:     uuid.New(),
		CampaignID: campaignID,
		ProductID:  productID,
		Quantity:   quantity,
		PriceCents: 9900,
		ExpiresAt:  expiresAt,
		Status:     "pending",
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error, "failed to seed reservation")

	err := db.Model(&repository.StockEntryModel{}).
		Where("campaign_id = ? AND product_id = ?", campaignID, productID).
		Update("reserved", gorm.Expr("reserved + ?", quantity)).Error
	require.NoError(t, err, "failed to bump reserved counter")

	return reservationID
}

// loadStockEntry reads the stock row back for counter assertions.
func loadStockEntry(t *testing.T, db *gorm.DB, campaignID uuid.UUID, productID int64) repository.StockEntryModel {
	t.Helper()
	var model repository.StockEntryModel
	require.NoError(t, db.Where("campaign_id = ? AND product_id = ?", campaignID, productID).First(&model).Error)
	return model
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForReservationStatus polls the reservations table until the status matches.
func waitForReservationStatus(t *testing.T, db *gorm.DB, reservationID uuid.UUID, expectedStatus string, timeout time.Duration) repository.ReservationModel {
	t.Helper()
	var result repository.ReservationModel
	require.Eventually(t, func() bool {
		var model repository.ReservationModel
		if err := db.Where("id = ?", reservationID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "reservation did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
