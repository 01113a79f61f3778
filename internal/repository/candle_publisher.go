package repository

import (
	"context"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	pkgkafka "CandleFeed/pkg/kafka"
)

// KafkaCandlePublisher emits finalized candles to a Kafka topic so
// downstream consumers (alerting, storage) see every closed interval.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaCandlePublisher creates the publisher.
func NewKafkaCandlePublisher(producer *pkgkafka.Producer, topic string) repository.CandlePublisher {
	return &KafkaCandlePublisher{producer: producer, topic: topic}
}

func (p *KafkaCandlePublisher) PublishCandle(ctx context.Context, key models.SeriesKey, c models.Candle) error {
	return p.producer.Publish(ctx, p.topic, []byte(key.String()), map[string]interface{}{
		"symbol":   key.Symbol,
		"market":   string(key.Market),
		"interval": string(key.Interval),
		"ts":       c.Time.Unix(),
		"open":     c.Open,
		"high":     c.High,
		"low":      c.Low,
		"close":    c.Close,
		"volume":   c.Volume,
	})
}

func (p *KafkaCandlePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
