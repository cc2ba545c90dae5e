package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress/sinks"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/worker"
)

const submitTimeout = 2 * time.Second

// JobSubmitter queues crawl and index jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, job worker.Job) (string, error)
}

// RunSource reports tracked runs.
type RunSource interface {
	Get(id string) (sinks.RunStatus, bool)
	List() []sinks.RunStatus
}

type jobRequest struct {
	Kind            progress.Kind `json:"kind"`
	IndexAfterCrawl bool          `json:"indexAfterCrawl"`
	Snapshot        string        `json:"snapshot"`
	Reset           bool          `json:"reset"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	job := worker.Job{
		Kind:            req.Kind,
		IndexAfterCrawl: req.IndexAfterCrawl,
		Snapshot:        req.Snapshot,
		Reset:           req.Reset,
	}
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	id, err := s.jobs.Submit(ctx, job)
	if err != nil {
		s.logger.Warn("job submission failed", zap.String("kind", string(job.Kind)), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}
	s.logger.Info("job queued", zap.String("job_id", id), zap.String("kind", string(job.Kind)))
	w.Header().Set("Location", "/v1/jobs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": string(sinks.RunQueued)})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.runs.List()})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
