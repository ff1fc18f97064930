package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/studyboard/program-scraper/internal/models"
)

// ProgramRepository persists extracted program records.
type ProgramRepository struct {
	db *DB
}

func NewProgramRepository(db *DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// Upsert inserts a program keyed by URL, refreshing the record on conflict.
func (r *ProgramRepository) Upsert(ctx context.Context, program *models.Program) error {
	attributes, err := json.Marshal(program.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	requirements, err := json.Marshal(program.Requirements)
	if err != nil {
		return fmt.Errorf("failed to encode requirements: %w", err)
	}
	scholarships, err := json.Marshal(program.Scholarships)
	if err != nil {
		return fmt.Errorf("failed to encode scholarships: %w", err)
	}
	institution, err := json.Marshal(program.Institution)
	if err != nil {
		return fmt.Errorf("failed to encode institution: %w", err)
	}
	intakes, err := json.Marshal(program.Intakes)
	if err != nil {
		return fmt.Errorf("failed to encode intakes: %w", err)
	}
	features, err := json.Marshal(program.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	query := `
		INSERT INTO programs (
			url, name, school_name, school_url, degree_type, summary,
			attributes, intakes, requirements, institution, features,
			scholarships, success_chance, scraped_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW()
		)
		ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			school_name = EXCLUDED.school_name,
			school_url = EXCLUDED.school_url,
			degree_type = EXCLUDED.degree_type,
			summary = EXCLUDED.summary,
			attributes = EXCLUDED.attributes,
			intakes = EXCLUDED.intakes,
			requirements = EXCLUDED.requirements,
			institution = EXCLUDED.institution,
			features = EXCLUDED.features,
			scholarships = EXCLUDED.scholarships,
			success_chance = EXCLUDED.success_chance,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()
	`

	_, err = r.db.Exec(ctx, query,
		program.URL, program.Name, program.SchoolName, program.SchoolURL,
		program.DegreeType, program.Summary, attributes, intakes,
		requirements, institution, features, scholarships,
		program.SuccessChance, program.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert program: %w", err)
	}

	return nil
}

// LinkToJob records that a job discovered a program.
func (r *ProgramRepository) LinkToJob(ctx context.Context, jobID, programURL string, page int) error {
	query := `
		INSERT INTO job_programs (job_id, program_url, page_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, program_url) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, jobID, programURL, page); err != nil {
		return fmt.Errorf("failed to link program to job: %w", err)
	}
	return nil
}

// ListByJob returns the programs a job scraped, newest first.
func (r *ProgramRepository) ListByJob(ctx context.Context, jobID string) ([]*models.Program, error) {
	query := `
		SELECT p.url, p.name, p.school_name, p.school_url, p.degree_type,
		       p.summary, p.attributes, p.intakes, p.requirements,
		       p.institution, p.features, p.scholarships, p.success_chance,
		       p.scraped_at
		FROM programs p
		JOIN job_programs jp ON jp.program_url = p.url
		WHERE jp.job_id = $1
		ORDER BY p.scraped_at DESC
	`

	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job programs: %w", err)
	}
	defer rows.Close()

	var programs []*models.Program
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return programs, nil
}

// Count returns the total number of stored programs.
func (r *ProgramRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM programs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count programs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*models.Program, error) {
	var (
		program      models.Program
		attributes   []byte
		intakes      []byte
		requirements []byte
		institution  []byte
		features     []byte
		scholarships []byte
		scrapedAt    time.Time
	)

	err := row.Scan(
		&program.URL, &program.Name, &program.SchoolName, &program.SchoolURL,
		&program.DegreeType, &program.Summary, &attributes, &intakes,
		&requirements, &institution, &features, &scholarships,
		&program.SuccessChance, &scrapedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan program: %w", err)
	}

	program.ScrapedAt = scrapedAt
	if err := json.Unmarshal(attributes, &program.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if err := json.Unmarshal(intakes, &program.Intakes); err != nil {
		return nil, fmt.Errorf("failed to decode intakes: %w", err)
	}
	if err := json.Unmarshal(requirements, &program.Requirements); err != nil {
		return nil, fmt.Errorf("failed to decode requirements: %w", err)
	}
	if err := json.Unmarshal(institution, &program.Institution); err != nil {
		return nil, fmt.Errorf("failed to decode institution: %w", err)
	}
	if err := json.Unmarshal(features, &program.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	if err := json.Unmarshal(scholarships, &program.Scholarships); err != nil {
		return nil, fmt.Errorf("failed to decode scholarships: %w", err)
	}

	return &program, nil
}
