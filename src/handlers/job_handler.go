package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/justaszie/spending-tracker/src/config"
	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
	"github.com/justaszie/spending-tracker/src/security/validation"
	"github.com/justaszie/spending-tracker/src/services"
	"github.com/justaszie/spending-tracker/src/utils"
)

type JobHandler struct {
	ingestService services.IngestService
	cfg           *config.AppConfig
}

func NewJobHandler(service services.IngestService, cfg *config.AppConfig) *JobHandler {
	return &JobHandler{
		ingestService: service,
		cfg:           cfg,
	}
}

type createJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobStatusResponse struct {
	JobID             string  `json:"job_id"`
	StatementSource   string  `json:"statement_source"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
	StartedAt         *string `json:"started_at,omitempty"`
	FinishedAt        *string `json:"finished_at,omitempty"`
	FailureReason     *string `json:"failure_reason,omitempty"`
	IngestedTxnCount  *int    `json:"ingested_txn_count,omitempty"`
	DuplicateTxnCount *int    `json:"duplicate_txn_count,omitempty"`
}

// HandleCreateJob accepts a statement upload, records a pending job and
// kicks off the ingestion pipeline in the background. It answers 202
// immediately, status is available via HandleGetJob.
func (h *JobHandler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", h.cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	source, err := models.ParseTxnSource(r.FormValue("statement_source"))
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid statement_source: %v", err), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("statement_file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'statement_file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "userID", userID, "fileSize", fileHeader.Size, "limit", h.cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", h.cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "userID", userID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Statement upload validated", "userID", userID, "filename", fileHeader.Filename, "source", source, "detectedType", detectedContentType)

	job, err := h.ingestService.CreateJob(r.Context(), userID, source, fileHeader.Filename, file)
	if err != nil {
		logger.L.Error("Internal error creating ingest job", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "An internal error occurred while accepting the statement. Please try again later.", http.StatusInternalServerError)
		return
	}

	// The pipeline outlives the request, so it runs on a fresh context.
	go h.ingestService.RunJob(context.Background(), job.ID)

	utils.SendJSONResponse(w, createJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	}, http.StatusAccepted)
}

func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.SendJSONError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.ingestService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			utils.SendJSONError(w, "Ingest job not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Internal error fetching ingest job", "userID", userID, "jobID", jobID, "error", err)
		utils.SendJSONError(w, "An internal error occurred while fetching the job.", http.StatusInternalServerError)
		return
	}

	if job.UserID != userID {
		// Jobs are private, answer as if the id did not exist.
		utils.SendJSONError(w, "Ingest job not found", http.StatusNotFound)
		return
	}

	utils.SendJSONResponse(w, jobStatusResponse{
		JobID:             job.ID.String(),
		StatementSource:   string(job.StatementSource),
		Status:            string(job.Status),
		CreatedAt:         job.CreatedAt.Format(time.RFC3339),
		StartedAt:         formatTimePtr(job.StartedAt),
		FinishedAt:        formatTimePtr(job.FinishedAt),
		FailureReason:     job.FailureReason,
		IngestedTxnCount:  job.IngestedTxnCount,
		DuplicateTxnCount: job.DuplicateTxnCount,
	}, http.StatusOK)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
