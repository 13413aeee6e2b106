package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"homestaging/internal/domain"
	"homestaging/internal/middleware"
	"homestaging/internal/tracker"
	"homestaging/internal/watermark"
	"homestaging/pkg/zip"
)

type jobDTO struct {
	ID            string    `json:"id"`
	OriginalName  string    `json:"original_name"`
	MIME          string    `json:"mime"`
	Status        string    `json:"status"`
	Unlocked      bool      `json:"unlocked"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toJobDTO(job domain.Job) jobDTO {
	return jobDTO{
		ID:            job.ID,
		OriginalName:  job.OriginalName,
		MIME:          job.MIME,
		Status:        string(job.Status),
		Unlocked:      job.Unlocked,
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

// JobsCreate accepts a multipart batch of photos under the "images" field and
// starts one retouch job per file. The response returns immediately with the
// new jobs still processing.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["images"]
	var uploads []tracker.Upload
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable file part")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable file part")
			return
		}
		// Sniff the content rather than trusting the part header; the client
		// side picker filter is advisory only.
		mime := mimetype.Detect(data).String()
		uploads = append(uploads, tracker.Upload{Name: fh.Filename, MIME: mime, Data: data})
	}

	ids, err := a.Tracker.SubmitBatch(userID, uploads)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBatch) {
			a.error(w, http.StatusBadRequest, "empty_batch", "at least one image is required")
			return
		}
		a.Logger.Error().Err(err).Msg("batch submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit batch")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_ids": ids})
}

// JobsList returns the caller's jobs in submission order.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs := a.Tracker.List(userID)
	items := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobDTO(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Tracker.Get(userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

// JobRegenerate re-runs the retouch for one job. Any prior outcome, success
// or failure, is discarded; the unlocked flag survives.
func (a *App) JobRegenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if err := a.Tracker.Regenerate(userID, jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	job, err := a.Tracker.Get(userID, jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusAccepted, toJobDTO(job))
}

// JobUnlock spends one credit to unlock the job's clean artifact. An empty
// balance routes the client to the purchase flow via 402.
func (a *App) JobUnlock(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	jobID := chi.URLParam(r, "job_id")
	balance, err := a.Service.Unlock(r.Context(), sess, jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthenticationRequired):
			a.error(w, http.StatusUnauthorized, "authentication_required", "sign in to unlock images")
		case errors.Is(err, domain.ErrInsufficientBalance):
			a.error(w, http.StatusPaymentRequired, "insufficient_balance", "not enough credits")
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrJobNotCompleted):
			a.error(w, http.StatusConflict, "job_not_completed", "only completed jobs can be unlocked")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("unlock failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to unlock job")
		}
		return
	}
	job, err := a.Tracker.Get(sess.UID, jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"balance": balance, "job": toJobDTO(job)})
}

// JobImage serves the retouched image. Unlocked jobs get the clean artifact;
// locked completed jobs get a downscaled watermarked preview.
func (a *App) JobImage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Tracker.Get(userID, chi.URLParam(r, "job_id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	switch {
	case job.Downloadable():
		w.Header().Set("Content-Type", mimetype.Detect(job.Artifact).String())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=staged-%s", job.OriginalName))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(job.Artifact)
	case job.Status == domain.JobStatusCompleted:
		preview, err := watermark.Apply(job.Artifact, watermark.DefaultLabel)
		if err != nil {
			a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("preview render failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to render preview")
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(preview)
	case job.Status == domain.JobStatusProcessing:
		a.error(w, http.StatusConflict, "job_processing", "job is still processing")
	default:
		a.error(w, http.StatusConflict, "job_failed", job.FailureReason)
	}
}

// JobsArchive bundles every unlocked artifact into one zip download.
func (a *App) JobsArchive(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var entries []zip.Entry
	for _, job := range a.Tracker.List(userID) {
		if !job.Downloadable() {
			continue
		}
		entries = append(entries, zip.Entry{
			Filename: "staged-" + job.OriginalName,
			Data:     job.Artifact,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusConflict, "nothing_unlocked", "no unlocked images to download")
		return
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Msg("archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=home-staging.zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// JobsClear discards the caller's whole batch, cancelling in-flight work.
func (a *App) JobsClear(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.Tracker.ClearAll(userID)
	w.WriteHeader(http.StatusNoContent)
}
