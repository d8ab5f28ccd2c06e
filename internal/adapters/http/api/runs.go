package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type runResponse struct {
	RunID           string `json:"run_id"`
	StartedAt       string `json:"started_at"`
	FeedPath        string `json:"feed_path"`
	SourcePath      string `json:"source_path"`
	IntervalSeconds int64  `json:"interval_seconds"`
	Teams           int    `json:"teams"`
	Submissions     int    `json:"submissions"`
	UnexpectedTools int    `json:"unexpected_tools"`
}

type dominantResponse struct {
	RunID  string `json:"run_id"`
	Bucket int64  `json:"bucket"`
	Team   string `json:"team"`
	Tool   string `json:"tool"`
}

// RunsHandler handles stored run requests.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleListRuns handles GET /runs requests.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.deps.Runs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			RunID:           run.ID,
			StartedAt:       run.StartedAt.UTC().Format(time.RFC3339),
			FeedPath:        run.FeedPath,
			SourcePath:      run.SourcePath,
			IntervalSeconds: int64(run.Interval / time.Second),
			Teams:           run.Teams,
			Submissions:     run.Submissions,
			UnexpectedTools: run.Mismatches,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDominant handles GET /runs/{id}/dominant?bucket=N&team=T requests.
func (h *RunsHandler) HandleDominant(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	team := r.URL.Query().Get("team")
	bucket, err := strconv.ParseInt(r.URL.Query().Get("bucket"), 10, 64)
	switch {
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: bucket must be an integer", ErrBadRequest))
		return
	case runID == "" || team == "":
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: run id and team are required", ErrBadRequest))
		return
	}

	id, err := h.deps.DominantTool(r.Context(), runID, bucket, team)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, dominantResponse{RunID: runID, Bucket: bucket, Team: team, Tool: string(id)})
}
