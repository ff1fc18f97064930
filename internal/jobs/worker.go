package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyboard/program-scraper/internal/events"
)

// StartWorker starts the background job worker
func (m *Manager) StartWorker(ctx context.Context, pollInterval time.Duration) {
	m.logger.Info("job worker started", "poll_interval", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

// processNextJob claims and processes the next pending job. The claim
// and the status flip to running happen in one transaction so the row
// lock from SKIP LOCKED holds until the job is no longer pending and a
// second worker cannot claim the same job.
func (m *Manager) processNextJob(ctx context.Context) {
	var jobID, destination string
	var limit int

	err := m.db.WithTx(ctx, func(tx pgx.Tx) error {
		claim := `
			SELECT id, destination, program_limit
			FROM crawl_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.QueryRow(ctx, claim).Scan(&jobID, &destination, &limit); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE crawl_jobs SET status = 'running', started_at = $1 WHERE id = $2`,
			time.Now(), jobID)
		return err
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			m.logger.Error("failed to claim job", "error", err)
		}
		return
	}

	m.logger.Info("processing job", "id", jobID, "destination", destination)

	if err := m.processJob(ctx, jobID, destination, limit); err != nil {
		m.logger.Error("job failed", "id", jobID, "error", err)
		m.updateJobStatus(ctx, jobID, "failed", err)
		return
	}

	if err := m.updateJobStatus(ctx, jobID, "completed", nil); err != nil {
		m.logger.Error("failed to mark job as completed", "error", err)
	}

	m.logger.Info("job completed", "id", jobID)
}

// processJob runs the crawl pipeline for one job and persists its results
func (m *Manager) processJob(ctx context.Context, jobID, destination string, limit int) error {
	result, err := m.runner.Crawl(ctx, destination, limit)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", destination, err)
	}

	saved := 0
	for i := range result.Programs {
		program := &result.Programs[i]

		if err := m.programs.Upsert(ctx, program); err != nil {
			m.logger.Error("failed to save program", "url", program.URL, "error", err)
			continue
		}
		if err := m.programs.LinkToJob(ctx, jobID, program.URL, 0); err != nil {
			m.logger.Error("failed to link program to job", "url", program.URL, "error", err)
			continue
		}
		saved++

		payload := &events.ProgramScrapedPayload{
			JobID:       jobID,
			Destination: result.Destination.Name,
			Program:     *program,
		}
		if err := m.publisher.PublishProgramScraped(ctx, payload); err != nil {
			m.logger.Error("failed to publish event", "url", program.URL, "error", err)
		}
	}

	resultPath := ""
	if m.writer != nil {
		path, err := m.writer.WriteResults(result.Destination.Name, result.SourceURL, result.Programs)
		if err != nil {
			m.logger.Error("failed to write result file", "error", err)
		} else {
			resultPath = path
		}
	}

	if err := m.updateJobResult(ctx, jobID, len(result.Programs), saved, result.Recoveries, resultPath); err != nil {
		m.logger.Error("failed to update job result", "error", err)
	}

	completed := &events.CrawlCompletedPayload{
		JobID:        jobID,
		Destination:  result.Destination.Name,
		ProgramCount: saved,
		Recoveries:   result.Recoveries,
		ResultPath:   resultPath,
	}
	if err := m.publisher.PublishCrawlCompleted(ctx, completed); err != nil {
		m.logger.Error("failed to publish completion event", "job", jobID, "error", err)
	}

	m.logger.Info("job processing complete",
		"job", jobID,
		"programs", saved,
		"recoveries", result.Recoveries)
	return nil
}
