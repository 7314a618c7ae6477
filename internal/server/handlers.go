package server

import (
	"errors"
	"net/http"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
)

// TriggerRequest names the record a created/changed/deleting hook is about.
// The lookup fields override the configured binding for the record type.
type TriggerRequest struct {
	RecordType     string        `json:"record_type"`
	RecordID       string        `json:"record_id"`
	CaseLookup     string        `json:"case_lookup,omitempty"`
	ArtifactLookup string        `json:"artifact_lookup,omitempty"`
	Changed        ir.Attributes `json:"changed,omitempty"`
	DryRun         bool          `json:"dry_run,omitempty"`
}

// AnnotationRequest names a newly created annotation.
type AnnotationRequest struct {
	AnnotationID string `json:"annotation_id"`
}

// DeleteResponse lists the artifacts removed by the cleanup hook.
type DeleteResponse struct {
	Deleted []string `json:"deleted"`
}

func (req TriggerRequest) validate() error {
	if req.RecordType == "" || req.RecordID == "" {
		return errors.New("record_type and record_id are required")
	}
	return nil
}

func (req AnnotationRequest) validate() error {
	if req.AnnotationID == "" {
		return errors.New("annotation_id is required")
	}
	return nil
}

func (s *Server) trigger(req TriggerRequest) engine.Trigger {
	t := s.config.Trigger(req.RecordType, req.RecordID)
	if req.CaseLookup != "" {
		t.CaseLookupField = req.CaseLookup
	}
	if req.ArtifactLookup != "" {
		t.ArtifactLookupField = req.ArtifactLookup
	}
	return t
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": ir.EngineVersion})
}

func (s *Server) handleCreated(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !decode(w, r, &req) {
		return
	}
	t := s.trigger(req)

	if req.DryRun {
		plan, err := s.engine.PlanCreated(r.Context(), t)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse(plan))
		return
	}
	if err := s.engine.OnRecordCreated(r.Context(), t); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

func (s *Server) handleChanged(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !decode(w, r, &req) {
		return
	}
	t := s.trigger(req)

	if req.DryRun {
		plan, err := s.engine.PlanChanged(r.Context(), t, req.Changed)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse(plan))
		return
	}
	if err := s.engine.OnRecordChanged(r.Context(), t, req.Changed); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

func (s *Server) handleDeleting(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if !decode(w, r, &req) {
		return
	}
	field := req.ArtifactLookup
	if field == "" {
		field = s.config.CascadeField(req.RecordType)
	}

	deleted, err := s.cleaner.OnRecordDeleting(r.Context(), req.RecordType, req.RecordID, field)
	s.metrics.ObserveHook("deleting", err)
	if err != nil {
		s.logger.Error("cascade delete failed", "record_type", req.RecordType, "record_id", req.RecordID, "error", err)
		writeHookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(DeleteResponse{Deleted: deleted}))
}

func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	var req AnnotationRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.uploads.OnAnnotationCreated(r.Context(), req.AnnotationID)
	s.metrics.ObserveHook("annotated", err)
	if err != nil {
		s.logger.Error("upload check failed", "annotation", req.AnnotationID, "error", err)
		writeHookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(result))
}

// writeEngineError maps an *engine.ExecutionError to a status code. The
// engine already logged it.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var ee *engine.ExecutionError
	if !errors.As(err, &ee) {
		writeError(w, http.StatusInternalServerError, string(engine.ErrCodeEvaluationAbort), err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch {
	case ee.Code == engine.ErrCodeDataAccess && store.IsNotFound(err):
		status = http.StatusNotFound
	case ee.Code == engine.ErrCodeDataAccess:
		status = http.StatusServiceUnavailable
	case ee.Code == engine.ErrCodeMetadata:
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, string(ee.Code), ee.Message)
}

func writeHookError(w http.ResponseWriter, err error) {
	var de *store.DataAccessError
	switch {
	case errors.Is(err, hooks.ErrCascadeNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, "NOT_CONFIGURED", err.Error())
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, string(engine.ErrCodeDataAccess), err.Error())
	case errors.As(err, &de):
		writeError(w, http.StatusServiceUnavailable, string(engine.ErrCodeDataAccess), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, string(engine.ErrCodeEvaluationAbort), err.Error())
	}
}
