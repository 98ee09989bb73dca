package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"adoptd/internal/devtools"
)

func (a *API) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"actions": devtools.Actions(),
		"jobs":    a.console.Store.List(),
	})
}

func (a *API) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	job, err := a.console.Start(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"job": job.Snapshot()})
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.consoleJob(r)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"job": job.Snapshot()})
}

// handleStreamJob streams job output lines as server-sent events until the
// job finishes or the client disconnects.
func (a *API) handleStreamJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.consoleJob(r)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	lines, cancel := job.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Replay what was captured before the subscription, then follow.
	_, _ = fmt.Fprintf(w, "event: backlog\ndata: %q\n\n", job.Log())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case line, open := <-lines:
			if !open {
				_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			_, _ = fmt.Fprintf(w, "data: %q\n\n", line)
			flusher.Flush()
		}
	}
}

func (a *API) handleDownloadJobLog(w http.ResponseWriter, r *http.Request) {
	job, err := a.consoleJob(r)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID.String()+".log.gz"))
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	_, _ = gz.Write(job.Log())
	_ = gz.Close()
}

func (a *API) consoleJob(r *http.Request) (*devtools.Job, error) {
	id, err := urlUUID(r, "jobID")
	if err != nil {
		return nil, err
	}
	return a.console.Store.Get(id)
}
