// Package consumer reads room events off Kafka and runs the accounting
// pass for each one.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/internal/event"
	"github.com/armada-chat/armada/internal/services"
	"github.com/armada-chat/armada/middleware/log"
)

type RoomEventConsumer struct {
	accounting *services.AccountingService
	logger     *logger.Logger
}

func NewRoomEventConsumer(accounting *services.AccountingService, log *logger.Logger) *RoomEventConsumer {
	return &RoomEventConsumer{
		accounting: accounting,
		logger:     log,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *RoomEventConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *RoomEventConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (c *RoomEventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var evt event.RoomEvent
		if err := json.Unmarshal(message.Value, &evt); err != nil {
			c.logger.Error("failed to decode room event",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Error(err),
			)
			session.MarkMessage(message, "")
			continue
		}

		if err := c.accounting.Handle(session.Context(), &evt); err != nil {
			// Mark anyway; retrying forever would wedge the partition.
			c.logger.Error("accounting failed for room event",
				zap.String("room_id", evt.RoomID.String()),
				zap.String("kind", evt.Kind),
				zap.Error(err),
			)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// Start launches the consumer group loop in the background. The loop
// exits when ctx is cancelled.
func Start(ctx context.Context, brokers []string, groupID, topic string, consumer *RoomEventConsumer, log *logger.Logger) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Error("consumer group error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return client, nil
}
