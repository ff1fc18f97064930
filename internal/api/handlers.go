package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyboard/program-scraper/internal/jobs"
	"github.com/studyboard/program-scraper/internal/scraper"
)

type Handlers struct {
	crawler *scraper.Crawler
	jobs    *jobs.Manager
	logger  *slog.Logger
}

func NewHandlers(crawler *scraper.Crawler, jobs *jobs.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		crawler: crawler,
		jobs:    jobs,
		logger:  logger,
	}
}

// CreateJobRequest represents a new crawl job request
type CreateJobRequest struct {
	Destination  string `json:"destination"`
	ProgramLimit int    `json:"program_limit"`
}

// CreateJobResponse represents the job creation response
type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateJob handles new crawl job creation
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Destination == "" {
		h.respondError(w, http.StatusBadRequest, "destination is required")
		return
	}

	if req.ProgramLimit <= 0 {
		req.ProgramLimit = 100
	}

	job, err := h.jobs.CreateJob(r.Context(), req.Destination, req.ProgramLimit)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

// GetJob handles job status retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs handles listing recent jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobList, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, jobList)
}

// GetJobPrograms handles retrieving the programs a job scraped
func (h *Handlers) GetJobPrograms(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	programs, err := h.jobs.GetJobPrograms(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job programs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get programs")
		return
	}

	h.respondJSON(w, http.StatusOK, programs)
}

// GetStats handles statistics retrieval
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// GetDestinations handles listing the discoverable study destinations
func (h *Handlers) GetDestinations(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.crawler.Destinations(r.Context())
	if err != nil {
		h.logger.Error("failed to discover destinations", "error", err)
		h.respondError(w, http.StatusBadGateway, "failed to discover destinations")
		return
	}

	h.respondJSON(w, http.StatusOK, destinations)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
