package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"send2me-service/internal/bucketing"
	"send2me-service/internal/model"
	"send2me-service/internal/util"
)

// Intake outcomes reported to the abuse sinks.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// EventProducer publishes abuse events to the message broker.
type EventProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// AuditSink records intake events for offline analysis.
type AuditSink interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// IntakeEvent is one intake decision, published to Kafka and mirrored into
// the ClickHouse audit table. It carries hashed metadata only.
type IntakeEvent struct {
	EventID    string    `json:"event_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	ToUID      string    `json:"to_uid,omitempty"`
	IPHash     string    `json:"ip_hash"`
	UAHash     string    `json:"ua_hash,omitempty"`
	Anon       bool      `json:"anon"`
	Bucket     int       `json:"bucket"`
	DateBucket string    `json:"date_bucket"`
	OccurredAt time.Time `json:"occurred_at"`
}

const insertIntakeEventQuery = `
    INSERT INTO intake_events (
        event_id, outcome, reason, to_uid, ip_hash, ua_hash, anon,
        bucket, date_bucket, occurred_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AbuseReporter fans intake decisions out to the configured sinks. Every
// sink is best effort: a report failure is logged and never surfaces to the
// caller, so intake latency and outcome are independent of sink health.
type AbuseReporter struct {
	producer EventProducer
	audit    AuditSink
	buckets  *bucketing.Manager
	topic    string
	now      func() time.Time
}

// NewAbuseReporter builds a reporter. Either sink may be nil when its
// backend is disabled.
func NewAbuseReporter(producer EventProducer, audit AuditSink, buckets *bucketing.Manager, topic string) *AbuseReporter {
	return &AbuseReporter{
		producer: producer,
		audit:    audit,
		buckets:  buckets,
		topic:    topic,
		now:      time.Now,
	}
}

// ReportAccepted records a persisted message.
func (r *AbuseReporter) ReportAccepted(ctx context.Context, message *model.Message) {
	r.report(ctx, IntakeEvent{
		Outcome: OutcomeAccepted,
		ToUID:   message.ToUID,
		IPHash:  message.Meta.IPHash,
		UAHash:  message.Meta.UAHash,
		Anon:    message.Anon,
	})
}

// ReportRejected records a rejected submission with the rejection reason.
func (r *AbuseReporter) ReportRejected(ctx context.Context, reason, toUID, ipHash, uaHash string) {
	r.report(ctx, IntakeEvent{
		Outcome: OutcomeRejected,
		Reason:  reason,
		ToUID:   toUID,
		IPHash:  ipHash,
		UAHash:  uaHash,
	})
}

func (r *AbuseReporter) report(ctx context.Context, event IntakeEvent) {
	now := r.now().UTC()
	event.EventID = uuid.New().String()
	event.Bucket = r.buckets.EventBucket(event.IPHash)
	event.DateBucket = r.buckets.DateBucket(now)
	event.OccurredAt = now

	if r.producer != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			err = r.producer.ProduceMessage(ctx, r.topic, []byte(event.IPHash), payload, map[string]string{
				"outcome": event.Outcome,
			})
		}
		if err != nil {
			util.Warn("Failed to publish intake event",
				zap.String("outcome", event.Outcome),
				zap.Error(err))
		}
	}

	if r.audit != nil {
		err := r.audit.Exec(ctx, insertIntakeEventQuery,
			event.EventID, event.Outcome, event.Reason, event.ToUID,
			event.IPHash, event.UAHash, event.Anon,
			event.Bucket, event.DateBucket, event.OccurredAt)
		if err != nil {
			util.Warn("Failed to record intake audit event",
				zap.String("outcome", event.Outcome),
				zap.Error(err))
		}
	}
}
