package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/studyboard/program-scraper/internal/database"
	"github.com/studyboard/program-scraper/internal/events"
	"github.com/studyboard/program-scraper/internal/models"
	"github.com/studyboard/program-scraper/internal/scraper"
	"github.com/studyboard/program-scraper/internal/storage"
)

// Runner runs a destination crawl. Satisfied by scraper.Crawler.
type Runner interface {
	Crawl(ctx context.Context, destination string, limit int) (*scraper.CrawlResult, error)
}

type Manager struct {
	db        *database.DB
	programs  *database.ProgramRepository
	publisher *events.Publisher
	runner    Runner
	writer    *storage.Writer
	logger    *slog.Logger
}

func NewManager(db *database.DB, runner Runner, publisher *events.Publisher, writer *storage.Writer, logger *slog.Logger) *Manager {
	return &Manager{
		db:        db,
		programs:  database.NewProgramRepository(db),
		publisher: publisher,
		runner:    runner,
		writer:    writer,
		logger:    logger.With("component", "job_manager"),
	}
}

// Job represents a crawl job
type Job struct {
	ID              string     `json:"id"`
	Destination     string     `json:"destination"`
	ProgramLimit    int        `json:"program_limit"`
	Status          string     `json:"status"`
	ProgramsFound   int        `json:"programs_found"`
	ProgramsScraped int        `json:"programs_scraped"`
	Recoveries      int        `json:"recoveries"`
	ResultPath      string     `json:"result_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Stats represents crawl statistics
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	TotalPrograms int64   `json:"total_programs"`
	SuccessRate   float64 `json:"success_rate"`
}

// ErrJobNotFound is returned when a job ID does not exist
var ErrJobNotFound = errors.New("job not found")

// CreateJob creates a new crawl job
func (m *Manager) CreateJob(ctx context.Context, destination string, limit int) (*Job, error) {
	if destination == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if limit < 1 {
		return nil, fmt.Errorf("program limit must be at least 1")
	}

	job := &Job{
		ID:           uuid.New().String(),
		Destination:  destination,
		ProgramLimit: limit,
		Status:       "pending",
		CreatedAt:    time.Now(),
	}

	query := `
		INSERT INTO crawl_jobs
		(id, destination, program_limit, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := m.db.Exec(ctx, query,
		job.ID, job.Destination, job.ProgramLimit, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "destination", destination)
	return job, nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, destination, program_limit, status,
		       programs_found, programs_scraped, recoveries, result_path,
		       created_at, started_at, completed_at, error
		FROM crawl_jobs
		WHERE id = $1
	`

	job := &Job{}
	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.Destination, &job.ProgramLimit, &job.Status,
		&job.ProgramsFound, &job.ProgramsScraped, &job.Recoveries, &job.ResultPath,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs lists recent jobs, newest first
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, destination, program_limit, status,
		       programs_found, programs_scraped, recoveries, result_path,
		       created_at, started_at, completed_at, error
		FROM crawl_jobs
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.Destination, &job.ProgramLimit, &job.Status,
			&job.ProgramsFound, &job.ProgramsScraped, &job.Recoveries, &job.ResultPath,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Error,
		)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// GetJobPrograms retrieves the programs a job scraped
func (m *Manager) GetJobPrograms(ctx context.Context, jobID string) ([]*models.Program, error) {
	if _, err := m.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return m.programs.ListByJob(ctx, jobID)
}

// GetStats retrieves crawl statistics
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*) as total_jobs,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending_jobs,
			COUNT(CASE WHEN status = 'running' THEN 1 END) as running_jobs,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed_jobs,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed_jobs
		FROM crawl_jobs
	`

	err := m.db.QueryRow(ctx, query).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}

	if count, err := m.programs.Count(ctx); err == nil {
		stats.TotalPrograms = count
	}

	return stats, nil
}

// updateJobStatus updates the status of a job
func (m *Manager) updateJobStatus(ctx context.Context, jobID, status string, jobErr error) error {
	var query string
	var args []interface{}

	now := time.Now()
	switch {
	case status == "completed":
		query = `UPDATE crawl_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, now, jobID}
	case status == "failed" && jobErr != nil:
		query = `UPDATE crawl_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, now, jobErr.Error(), jobID}
	default:
		query = `UPDATE crawl_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, jobID}
	}

	_, execErr := m.db.Exec(ctx, query, args...)
	return execErr
}

// updateJobResult records the crawl outcome on the job row
func (m *Manager) updateJobResult(ctx context.Context, jobID string, found, scraped, recoveries int, resultPath string) error {
	query := `
		UPDATE crawl_jobs
		SET programs_found = $1, programs_scraped = $2, recoveries = $3, result_path = $4
		WHERE id = $5
	`
	_, err := m.db.Exec(ctx, query, found, scraped, recoveries, resultPath, jobID)
	return err
}
