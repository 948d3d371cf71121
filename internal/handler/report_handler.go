// Package handler provides HTTP handlers for the report engine API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tara-platform/report-engine/internal/generator"
	"github.com/tara-platform/report-engine/internal/model"
	"github.com/tara-platform/report-engine/internal/risk"
	"github.com/tara-platform/report-engine/internal/version"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// ReportHandler handles HTTP requests for risk computation and report
// versioning.
type ReportHandler struct {
	versions    *version.Service
	coordinator *generator.Coordinator
	profile     *risk.Profile
}

// NewReportHandler creates a new report handler.
func NewReportHandler(versions *version.Service, coordinator *generator.Coordinator, profile *risk.Profile) *ReportHandler {
	return &ReportHandler{
		versions:    versions,
		coordinator: coordinator,
		profile:     profile,
	}
}

// RegisterRoutes registers the report engine routes.
func (h *ReportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/risk/compute", h.ComputeRisk).Methods("POST")

	r.HandleFunc("/reports", h.CreateReport).Methods("POST")
	r.HandleFunc("/reports/{id}/versions", h.ListVersions).Methods("GET")
	r.HandleFunc("/reports/{id}/versions/{number}", h.GetVersion).Methods("GET")
	r.HandleFunc("/reports/{id}/versions/{a}/diff/{b}", h.DiffVersions).Methods("GET")

	r.HandleFunc("/reports/{id}/generate", h.Generate).Methods("POST")
	r.HandleFunc("/reports/{id}/generation", h.GenerationStatus).Methods("GET")
	r.HandleFunc("/reports/{id}/generation", h.CancelGeneration).Methods("DELETE")

	r.HandleFunc("/reports/{id}/versions/{number}/submit", h.SubmitVersion).Methods("POST")
	r.HandleFunc("/reports/{id}/versions/{number}/approve", h.ApproveVersion).Methods("POST")
	r.HandleFunc("/reports/{id}/versions/{number}/reject", h.RejectVersion).Methods("POST")
	r.HandleFunc("/reports/{id}/versions/{number}/resubmit", h.ResubmitVersion).Methods("POST")
	r.HandleFunc("/reports/{id}/versions/{number}/baseline", h.SetBaseline).Methods("POST")
	r.HandleFunc("/reports/{id}/rollback", h.Rollback).Methods("POST")
}

// ComputeRisk runs the full risk chain synchronously for one threat.
func (h *ReportHandler) ComputeRisk(w http.ResponseWriter, r *http.Request) {
	var in risk.ComputeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	result, err := h.profile.ComputeRisk(in)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

type createReportRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

// CreateReport registers a report container for a project.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	report, err := h.versions.CreateReport(r.Context(), req.ProjectID, req.Title, actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, report)
}

// ListVersions lists a report's version history.
func (h *ReportHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	versions, err := h.versions.ListVersions(r.Context(), reportID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, versions)
}

// GetVersion returns one version including snapshot and change list.
func (h *ReportHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	reportID, number, err := versionVars(r, "number")
	if err != nil {
		h.respondError(w, err)
		return
	}

	v, err := h.versions.GetVersion(r.Context(), reportID, number)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, v)
}

// DiffVersions returns the structured differences between two versions.
func (h *ReportHandler) DiffVersions(w http.ResponseWriter, r *http.Request) {
	reportID, a, err := versionVars(r, "a")
	if err != nil {
		h.respondError(w, err)
		return
	}
	b, err := model.ParseVersionNumber(mux.Vars(r)["b"])
	if err != nil {
		h.respondError(w, apperrors.Validation(err.Error()))
		return
	}

	changes, err := h.versions.Diff(r.Context(), reportID, a, b)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, changes)
}

type generateRequest struct {
	IsMajor       bool   `json:"is_major"`
	ChangeSummary string `json:"change_summary,omitempty"`
}

// Generate starts an asynchronous version generation for a report.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	var req generateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, apperrors.Validation("invalid request body"))
			return
		}
	}

	status, err := h.coordinator.Start(r.Context(), generator.Request{
		ReportID:      reportID,
		IsMajor:       req.IsMajor,
		ChangeSummary: req.ChangeSummary,
		RequestedBy:   actor(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, status)
}

// GenerationStatus returns the pollable generation status.
func (h *ReportHandler) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.coordinator.Status(mux.Vars(r)["id"]))
}

// CancelGeneration aborts an in-flight generation.
func (h *ReportHandler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Cancel(mux.Vars(r)["id"]); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitVersion moves a draft version to pending approval.
func (h *ReportHandler) SubmitVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
		return h.versions.SubmitForApproval(r.Context(), reportID, number)
	})
}

type approveRequest struct {
	Approver string `json:"approver"`
}

// ApproveVersion approves a pending version.
func (h *ReportHandler) ApproveVersion(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, apperrors.Validation("invalid request body"))
			return
		}
	}
	if req.Approver == "" {
		req.Approver = actor(r)
	}

	h.transition(w, r, func(reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
		return h.versions.Approve(r.Context(), reportID, number, req.Approver)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectVersion rejects a pending version with a reason.
func (h *ReportHandler) RejectVersion(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, apperrors.Validation("invalid request body"))
			return
		}
	}

	h.transition(w, r, func(reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
		return h.versions.Reject(r.Context(), reportID, number, actor(r), req.Reason)
	})
}

// ResubmitVersion moves a rejected version back to draft.
func (h *ReportHandler) ResubmitVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
		return h.versions.Resubmit(r.Context(), reportID, number)
	})
}

// SetBaseline designates an approved version as the report baseline.
func (h *ReportHandler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(reportID string, number model.VersionNumber) (*model.ReportVersion, error) {
		return h.versions.SetBaseline(r.Context(), reportID, number, actor(r))
	})
}

type rollbackRequest struct {
	TargetVersion string `json:"target_version"`
}

// Rollback creates a new draft version from an older version's snapshot.
func (h *ReportHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.Validation("invalid request body"))
		return
	}
	target, err := model.ParseVersionNumber(req.TargetVersion)
	if err != nil {
		h.respondError(w, apperrors.Validation(err.Error()))
		return
	}

	v, err := h.versions.RollbackTo(r.Context(), reportID, target, actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, v)
}

func (h *ReportHandler) transition(w http.ResponseWriter, r *http.Request, op func(string, model.VersionNumber) (*model.ReportVersion, error)) {
	reportID, number, err := versionVars(r, "number")
	if err != nil {
		h.respondError(w, err)
		return
	}

	v, err := op(reportID, number)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, v.CloneShallow())
}

func versionVars(r *http.Request, key string) (string, model.VersionNumber, error) {
	vars := mux.Vars(r)
	number, err := model.ParseVersionNumber(vars[key])
	if err != nil {
		return "", model.VersionNumber{}, apperrors.Validation(err.Error())
	}
	return vars["id"], number, nil
}

// actor resolves the acting user. Authentication is owned by the
// surrounding platform; the engine trusts the forwarded identity.
func actor(r *http.Request) string {
	if user := r.Header.Get("X-User-ID"); user != "" {
		return user
	}
	return "system"
}

func (h *ReportHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *ReportHandler) respondError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.CodeInternalError, "internal error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_, _ = w.Write(appErr.ToJSON())
}
