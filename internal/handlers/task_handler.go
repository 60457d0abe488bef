package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hecoverseer/backend/internal/economy"
	"github.com/hecoverseer/backend/internal/models"
	"github.com/hecoverseer/backend/internal/validation"
	"github.com/hecoverseer/backend/internal/verifier"
)

const maxBodyBytes = 1 << 20

// Settler is the subset of the economy engine needed by the handler.
type Settler interface {
	SubmitWork(ctx context.Context, req economy.WorkRequest) (*economy.Result, error)
	Submit(ctx context.Context, req economy.SubmitRequest) (*economy.Result, error)
	RegisterWorker(ctx context.Context) (*models.User, error)
}

// PayloadValidator checks a raw request body against a named schema.
type PayloadValidator interface {
	Validate(ctx context.Context, schema string, payload []byte) error
}

// TaskReader is the subset of the task repository needed by the handler.
type TaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// SubmissionReader is the subset of the submission repository needed by the handler.
type SubmissionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
}

// TaskHandler serves work submissions, task lookup and worker registration.
type TaskHandler struct {
	Engine      Settler
	Tasks       TaskReader
	Submissions SubmissionReader
	Validator   PayloadValidator
	Logger      *slog.Logger
}

// Submissions from the public endpoint carry no real location; they get a
// placeholder fence and only GPS is required.
var (
	defaultGeoFence         = models.GeoFence{Lat: 0, Long: 0, RadiusMeters: 100}
	defaultRequiredEvidence = []string{models.EvidenceGPS}
)

// --- POST /submit_task ---

type submitTaskRequest struct {
	WorkerID    string            `json:"worker_id"`
	TaskType    string            `json:"task_type"`
	HoursLogged float64           `json:"hours_logged"`
	GPSLogs     string            `json:"gps_logs"`
	MediaURL    string            `json:"media_url"`
	ProofMedia  []string          `json:"proof_media"`
	Telemetry   map[string]string `json:"telemetry"`
}

type submitResponse struct {
	Status       string  `json:"status"`
	SubmissionID string  `json:"submission_id"`
	TaskID       string  `json:"task_id"`
	Verdict      string  `json:"verdict"`
	Reason       string  `json:"reason"`
	Minted       float64 `json:"minted"`
	LedgerTxID   string  `json:"ledger_tx_id,omitempty"`
}

// SubmitTask handles POST /submit_task.
// Decode -> Validate (schema) -> Settle (task + submission + verdict) -> 200.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, validation.SubmitTask)
	if !ok {
		return
	}
	var req submitTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		http.Error(w, `{"error":"invalid worker_id"}`, http.StatusBadRequest)
		return
	}

	telemetry := make(map[string]string, len(req.Telemetry)+1)
	for k, v := range req.Telemetry {
		telemetry[k] = v
	}
	if req.GPSLogs != "" {
		telemetry[verifier.TelemetryGPSLog] = req.GPSLogs
	}
	media := append([]string(nil), req.ProofMedia...)
	if req.MediaURL != "" {
		media = append([]string{req.MediaURL}, media...)
	}

	res, err := h.Engine.SubmitWork(r.Context(), economy.WorkRequest{
		WorkerID:         workerID,
		TaskType:         req.TaskType,
		Hours:            req.HoursLogged,
		Telemetry:        telemetry,
		ProofMedia:       media,
		GeoFence:         defaultGeoFence,
		RequiredEvidence: defaultRequiredEvidence,
	})
	if err != nil {
		h.settleError(w, err, "submit task")
		return
	}
	writeJSON(w, http.StatusOK, toSubmitResponse(res))
}

// --- POST /tasks/{task_id}/submissions ---

type submitEvidenceRequest struct {
	WorkerID    string            `json:"worker_id"`
	HoursLogged float64           `json:"hours_logged"`
	ProofMedia  []string          `json:"proof_media"`
	Telemetry   map[string]string `json:"telemetry"`
}

// SubmitEvidence handles POST /tasks/{task_id}/submissions for a task that
// already exists.
func (h *TaskHandler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	body, ok := h.readBody(w, r, validation.SubmitEvidence)
	if !ok {
		return
	}
	var req submitEvidenceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		http.Error(w, `{"error":"invalid worker_id"}`, http.StatusBadRequest)
		return
	}

	res, err := h.Engine.Submit(r.Context(), economy.SubmitRequest{
		WorkerID:   workerID,
		TaskID:     taskID,
		Hours:      req.HoursLogged,
		Telemetry:  req.Telemetry,
		ProofMedia: req.ProofMedia,
	})
	if err != nil {
		h.settleError(w, err, "submit evidence")
		return
	}
	writeJSON(w, http.StatusOK, toSubmitResponse(res))
}

// --- GET /tasks/{task_id} ---

// GetTask handles GET /tasks/{task_id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	task, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- GET /submissions/{submission_id} ---

// GetSubmission handles GET /submissions/{submission_id}. Clients poll it to
// see a MINT_PENDING submission settle.
func (h *TaskHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("submission_id"))
	if err != nil {
		http.Error(w, `{"error":"invalid submission id"}`, http.StatusBadRequest)
		return
	}
	sub, err := h.Submissions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"submission not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get submission", "submission_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// --- POST /workers ---

type workerResponse struct {
	UserID          string  `json:"user_id"`
	WalletAddress   string  `json:"wallet_address"`
	ReputationScore float64 `json:"reputation_score"`
	TotalMinted     float64 `json:"total_minted"`
	Status          string  `json:"status"`
}

// RegisterWorker handles POST /workers.
func (h *TaskHandler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	u, err := h.Engine.RegisterWorker(r.Context())
	if err != nil {
		h.Logger.Error("register worker", "error", err)
		http.Error(w, `{"error":"failed to register worker"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, workerResponse{
		UserID:          u.ID.String(),
		WalletAddress:   u.WalletAddress,
		ReputationScore: u.ReputationScore,
		TotalMinted:     u.TotalMinted,
		Status:          u.Status,
	})
}

// --- helpers ---

// readBody reads the request body and validates it against schema (hard
// reject). It writes the error response itself and reports false on failure.
func (h *TaskHandler) readBody(w http.ResponseWriter, r *http.Request, schema string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, `{"error":"request body too large or unreadable"}`, http.StatusBadRequest)
		return nil, false
	}
	if !json.Valid(body) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return nil, false
	}
	if h.Validator == nil {
		return body, true
	}
	if err := h.Validator.Validate(r.Context(), schema, body); err != nil {
		if errors.Is(err, validation.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return nil, false
		}
		h.Logger.Error("validate payload", "schema", schema, "error", err)
		http.Error(w, `{"error":"input validation failed"}`, http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (h *TaskHandler) settleError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, economy.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, economy.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, economy.ErrLedger):
		h.Logger.Error(op, "error", err)
		http.Error(w, `{"error":"reward ledger unavailable"}`, http.StatusBadGateway)
	default:
		h.Logger.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func toSubmitResponse(res *economy.Result) submitResponse {
	return submitResponse{
		Status:       "submitted",
		SubmissionID: res.SubmissionID.String(),
		TaskID:       res.TaskID.String(),
		Verdict:      res.Verdict,
		Reason:       res.Reason,
		Minted:       res.Minted,
		LedgerTxID:   res.LedgerTxID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
