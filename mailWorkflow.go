package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/mmdatafocus/hrcrm_backend/workflow"
	"github.com/sirupsen/logrus"
)

// RunMailSubscriber pulls mail messages from PUBSUB_SUBSCRIPTION. It is the
// alternative to the /pubsub push endpoint for environments without a public URL.
func RunMailSubscriber(ctx context.Context) error {
	logger := config.GetLogger()
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, config.MailTopicName())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.MailMessage{}
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			config.LogError(logger, "mailWorkflow.go", "RunMailSubscriber", "Unmarshaling pubsub message", msg.Data, err)
			msg.Ack()
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.ID
		}
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)

		markOutboxProcessing(ctx, m.OutboxId)
		if err := ProcessMessage(ctx, logger, m); err != nil {
			if errors.Is(err, workflow.ErrMailOutboxMissing) {
				msg.Ack()
				return
			}
			if dead := markOutboxProcessFailure(ctx, logger, m, err); dead {
				msg.Ack()
				return
			}
			msg.Nack()
			return
		}
		markOutboxProcessSuccess(ctx, logger, m)
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "mailWorkflow.go", "RunMailSubscriber", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}

// ProcessMessage delivers one queued mail. Delivery is idempotent per outbox row,
// so push, pull and the direct processor may all see the same message.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.MailMessage) error {
	deps, err := workflow.DefaultMailDeps()
	if err != nil {
		return err
	}
	return workflow.DeliverMailMessage(ctx, config.GetDB(), logger, m, deps)
}
