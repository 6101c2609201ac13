// Package main provides the record relay service entry point. It
// consumes collection replacement events from the broker and applies
// them to the shared store, so external domain writers never touch the
// store directly.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/infrastructure/redpanda"
	"github.com/carelogic/go-hde/internal/store"
	"github.com/carelogic/go-hde/pkg/circuitbreaker"
)

var knownCollections = map[string]bool{
	record.CollectionVisits:     true,
	record.CollectionDoctors:    true,
	record.CollectionBeds:       true,
	record.CollectionWards:      true,
	record.CollectionAdmissions: true,
	record.CollectionOrders:     true,
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	brokers := []string{"localhost:9092"}
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		brokers = strings.Split(b, ",")
	}

	ctx := context.Background()

	backend, err := store.Open(ctx, logger)
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}

	cbManager := circuitbreaker.NewManager(logger, nil)
	storeCB := cbManager.GetOrCreate("store", circuitbreaker.DefaultConfig("store"))
	st := store.WithBreaker(backend, storeCB, logger)

	admin, err := redpanda.NewAdmin(brokers, logger)
	if err != nil {
		logger.Fatal("broker admin creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx); err != nil {
		logger.Warn("topic creation failed", zap.Error(err))
	}
	admin.Close()

	handler := func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		var event redpanda.RecordUpdateEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Malformed events are logged and committed; retrying
			// cannot fix them.
			logger.Warn("dropping malformed record update",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		if !knownCollections[event.Collection] {
			logger.Warn("dropping update for unknown collection",
				zap.String("collection", event.Collection))
			return nil
		}

		if err := st.Write(ctx, event.Collection, event.Records); err != nil {
			return fmt.Errorf("applying update to %s: %w", event.Collection, err)
		}

		logger.Info("collection replaced",
			zap.String("collection", event.Collection),
			zap.Int("records", len(event.Records)))
		return nil
	}

	ccfg := redpanda.DefaultConsumerConfig()
	ccfg.Brokers = brokers
	ccfg.Topics = []string{redpanda.TopicRecordsUpdated}
	if group := os.Getenv("CONSUMER_GROUP"); group != "" {
		ccfg.GroupID = group
	}

	consumer, err := redpanda.NewConsumer(ccfg, handler, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()
	logger.Info("record relay started",
		zap.Strings("brokers", brokers),
		zap.String("group", ccfg.GroupID))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down record relay")
	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop error", zap.Error(err))
	}

	stats := consumer.Stats()
	logger.Info("record relay stopped",
		zap.Int64("messages_read", stats.MessagesRead),
		zap.Int64("errors", stats.ErrorCount))
}
