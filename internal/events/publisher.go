package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studyboard/program-scraper/internal/database"
	"github.com/studyboard/program-scraper/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeProgramScraped is published when a program detail page is extracted
	EventTypeProgramScraped EventType = "PROGRAM_SCRAPED"
	// EventTypeCrawlCompleted is published when a crawl job finishes
	EventTypeCrawlCompleted EventType = "CRAWL_COMPLETED"
)

// ProgramScrapedPayload is the payload for a PROGRAM_SCRAPED event
type ProgramScrapedPayload struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	JobID       string         `json:"job_id,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Program     models.Program `json:"program"`
	Source      string         `json:"source"`
}

// CrawlCompletedPayload is the payload for a CRAWL_COMPLETED event
type CrawlCompletedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	JobID        string    `json:"job_id"`
	Destination  string    `json:"destination"`
	ProgramCount int       `json:"program_count"`
	Recoveries   int       `json:"recoveries"`
	ResultPath   string    `json:"result_path,omitempty"`
}

// Publisher handles event publishing using the transactional outbox pattern
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

// NewPublisher creates a new event publisher with database connection
func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishProgramScraped publishes a PROGRAM_SCRAPED event through the outbox
func (p *Publisher) PublishProgramScraped(ctx context.Context, payload *ProgramScrapedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeProgramScraped)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "scraper"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "program",
		AggregateID:   payload.Program.URL,
		EventType:     string(EventTypeProgramScraped),
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}

	return p.insert(ctx, outboxEvent, payload.EventID)
}

// PublishCrawlCompleted publishes a CRAWL_COMPLETED event through the outbox
func (p *Publisher) PublishCrawlCompleted(ctx context.Context, payload *CrawlCompletedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeCrawlCompleted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "crawl_job",
		AggregateID:   payload.JobID,
		EventType:     string(EventTypeCrawlCompleted),
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}

	return p.insert(ctx, outboxEvent, payload.EventID)
}

func (p *Publisher) insert(ctx context.Context, event *database.OutboxEvent, eventID string) error {
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", event.EventType,
		"event_id", eventID,
		"aggregate_id", event.AggregateID,
		"outbox_id", event.ID,
	)

	return nil
}
