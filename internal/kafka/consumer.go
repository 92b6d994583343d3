package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"alert-service/internal/logging"
	"alert-service/internal/models"
	"alert-service/internal/services"
	"alert-service/internal/utils"
)

const (
	handleAttempts  = 3
	handleDelay     = 2 * time.Second
	fetchBackoff    = time.Second
	maxFetchBackoff = 30 * time.Second
)

// EventHandler applies one upstream event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.UpstreamEvent) error
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads back-office events and hands them to the alert manager.
// Offsets are committed once a message is handled or given up on.
type Consumer struct {
	reader  reader
	handler EventHandler
	logger  *logging.Logger
	delay   time.Duration
	backoff time.Duration

	cancel context.CancelFunc
}

func NewConsumer(brokers []string, topic, groupID string, handler EventHandler, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(r, handler, logger)
}

func newConsumer(r reader, handler EventHandler, logger *logging.Logger) *Consumer {
	return &Consumer{reader: r, handler: handler, logger: logger, delay: handleDelay, backoff: fetchBackoff}
}

func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")
		backoff := c.backoff
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Fetch message failed, retrying in %s: %v", backoff, err)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					c.logger.Info("Kafka consumer stopped")
					return
				}
				backoff *= 2
				if backoff > maxFetchBackoff {
					backoff = maxFetchBackoff
				}
				continue
			}
			backoff = c.backoff

			c.handleMessage(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var ev models.UpstreamEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Errorf("Unmarshal message at offset %d failed: %v", msg.Offset, err)
		return
	}
	if ev.Type == "" {
		c.logger.Errorf("Invalid message at offset %d: missing type", msg.Offset)
		return
	}

	err := utils.Retry(ctx, c.logger, handleAttempts, c.delay, func() error {
		err := c.handler.HandleEvent(ctx, ev)
		if errors.Is(err, services.ErrUnknownEvent) {
			c.logger.Warnf("Ignoring message at offset %d: %v", msg.Offset, err)
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Errorf("Dropping %s event at offset %d: %v", ev.Type, msg.Offset, err)
		return
	}
	c.logger.Debugf("Processed %s event at offset %d", ev.Type, msg.Offset)
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Warnf("Failed to close Kafka reader: %v", err)
	}
}
