package web

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/logger"
	"github.com/lesterapp/lester/internal/ops"
	"github.com/lesterapp/lester/internal/tagging"
)

// Handlers contains HTTP route handlers for the JSON API.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	policy tagging.Policy
	log    *slog.Logger
}

// fail renders err and logs it when the client only gets a generic 500.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	if lErr, ok := errors.As(err); !ok || lErr.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err, logger.Cause(err))
	}
	renderError(w, err)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.log.Warn("health check failed", "err", err, logger.Cause(err))
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": db.CurrentSchemaVersion,
	})
}

// HandleListWorkspaces handles GET /workspaces.
func (h *Handlers) HandleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListWorkspaces(r.Context(), h.db)
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCreateWorkspace handles POST /workspaces.
func (h *Handlers) HandleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var input ops.CreateWorkspaceInput
	if err := decodeBody(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.CreateWorkspace(r.Context(), h.db, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleListBookmarks handles GET /bookmarks?workspace_id=&tag=&q=&limit=.
func (h *Handlers) HandleListBookmarks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", ops.DefaultListLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	q := r.URL.Query()
	out, err := ops.ListBookmarks(r.Context(), h.db, ops.ListBookmarksInput{
		WorkspaceID: q.Get("workspace_id"),
		Tag:         q.Get("tag"),
		Query:       q.Get("q"),
		Limit:       limit,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCreateBookmark handles POST /bookmarks. The response carries the new
// bookmark and its pending tag job.
func (h *Handlers) HandleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var input ops.CreateBookmarkInput
	if err := decodeBody(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.CreateBookmark(r.Context(), h.db, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleGetBookmark handles GET /bookmarks/{id}.
func (h *Handlers) HandleGetBookmark(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetBookmark(r.Context(), h.db, ops.GetBookmarkInput{ID: r.PathValue("id")})
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleListTags handles GET /tags.
func (h *Handlers) HandleListTags(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListTags(r.Context(), h.db)
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleTagCloud handles GET /tag-cloud?limit=.
func (h *Handlers) HandleTagCloud(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", db.DefaultTagCloudLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.TagCloud(r.Context(), h.db, ops.TagCloudInput{Limit: limit})
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleListJobs handles GET /jobs?status=&limit=.
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", ops.DefaultJobLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.ListJobs(r.Context(), h.db, ops.ListJobsInput{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleGetJob handles GET /jobs/{id}.
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetJob(r.Context(), h.db, ops.GetJobInput{ID: r.PathValue("id")})
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleSuggest handles POST /suggest.
func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	var input ops.SuggestInput
	if err := decodeBody(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.Suggest(h.policy, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleSyncMerge handles POST /sync/merge. Merging never fails once the body
// decodes.
func (h *Handlers) HandleSyncMerge(w http.ResponseWriter, r *http.Request) {
	var input ops.SyncMergeInput
	if err := decodeBody(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	renderJSON(w, http.StatusOK, ops.SyncMerge(input))
}

// HandleSyncApply handles POST /sync/apply.
func (h *Handlers) HandleSyncApply(w http.ResponseWriter, r *http.Request) {
	var input ops.SyncMergeInput
	if err := decodeBody(w, r, &input); err != nil {
		h.fail(w, err)
		return
	}
	out, err := ops.SyncApply(r.Context(), h.db, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(out.Conflicts) > 0 {
		h.log.Info("sync applied with conflicts", "conflicts", len(out.Conflicts), "applied", len(out.Applied))
	}
	renderJSON(w, http.StatusOK, out)
}
