package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/grants/applications/model"
)

const EventSubmitted = "grant_application.submitted"

type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// SubmittedEvent adalah payload grant_application.submitted.
type SubmittedEvent struct {
	Event            string    `json:"event"`
	ApplicationID    string    `json:"application_id"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phone_number"`
	FullName         string    `json:"full_name"`
	Amount           string    `json:"amount"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// publishSubmitted tidak pernah menggagalkan submission.
func (s *SubmissionService) publishSubmitted(ctx context.Context, rec *model.GrantApplication) {
	ev := SubmittedEvent{
		Event:         EventSubmitted,
		ApplicationID: rec.ID.String(),
		UserID:        rec.UserID.String(),
		Email:         rec.Email,
		PhoneNumber:   rec.PhoneNumber,
		FullName:      rec.FullName,
		Amount:        rec.Amount.StringFixed(2),
		SubmittedAt:   rec.SubmittedAt,
	}
	if rec.PaymentReference != nil {
		ev.PaymentReference = *rec.PaymentReference
	}
	value, err := sonic.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("[EVENT] marshal submitted event")
		return
	}
	if err := s.events.Publish(ctx, rec.ID.String(), value); err != nil {
		log.WithError(err).WithField("application_id", rec.ID).Warn("[EVENT] publish submitted event failed")
	}
}

// KafkaPublisher menulis ke satu topic; key = application id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher dipakai saat KAFKA_BROKERS kosong.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, key string, value []byte) error {
	log.WithField("key", key).Infof("[EVENT] %s %s", EventSubmitted, string(value))
	return nil
}
