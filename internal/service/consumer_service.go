package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-streamer-be/internal/dto"
	"ai-streamer-be/internal/persona"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the knowledge indexing topic. Uploads come back as
// IndexKnowledge payloads; each one is chunked, embedded and folded into the
// target persona's index off the request path.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	pm        *persona.Manager
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	pm *persona.Manager,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		pm:        pm,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexKnowledge
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal indexing message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Indexing knowledge for persona %s (source: %s, length: %d)",
		payload.PersonaID, payload.Source, len(payload.Text))

	chunks, err := cs.pm.IndexDocument(ctx, payload.PersonaID, payload.Source, payload.Text)
	if err != nil {
		log.Printf("[ERROR] Failed to index knowledge for persona %s: %v", payload.PersonaID, err)
		msg.Nack() // Retriable: embedding provider may be down
		return
	}

	log.Printf("[SUCCESS] Indexed %d chunks for persona %s", chunks, payload.PersonaID)
	msg.Ack()
}
