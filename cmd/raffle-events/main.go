package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/kafka"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDir)
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topics := cfg.Kafka.Topics.All()
	if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Listening on %s", strings.Join(topics, ", ")))
	err := consumer.Start(ctx, func(topic string, event models.SelectionEvent) {
		log.LogKafka("RECEIVED", topic, describe(event))
	})
	if err != nil {
		log.Fatal("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}
	log.Info("APP", "✅ Raffle event consumer shutdown complete")
}

func describe(event models.SelectionEvent) string {
	numbers := "-"
	if len(event.Numbers) > 0 {
		numbers = strings.Join(event.Numbers, ",")
	}
	return fmt.Sprintf("%s raffle=%d numbers=%s at %s", event.Type, event.RaffleID, numbers, event.OccurredAt.Format("2006-01-02 15:04:05"))
}
