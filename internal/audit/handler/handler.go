// Package handler exposes the action-plan operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"actionplan/internal/audit/models"
	dErrors "actionplan/pkg/domain-errors"
	"actionplan/pkg/platform/httputil"
	pstrings "actionplan/pkg/platform/strings"
	"actionplan/pkg/requestcontext"
)

// Service defines the action-plan operations the handler serves.
type Service interface {
	Preview(ctx context.Context, doc []byte) (*models.Extraction, error)
	Import(ctx context.Context, doc []byte) (*models.ImportResult, error)
	ListIdentifiers(ctx context.Context) ([]string, error)
	ListFindings(ctx context.Context, identifiers ...string) ([]*models.Finding, error)
	UpdateFinding(ctx context.Context, id uuid.UUID, update models.FindingUpdate) (*models.Finding, error)
	AttachFile(ctx context.Context, findingID uuid.UUID, filename string, data []byte) (*models.Attachment, error)
}

const (
	defaultMaxUploadBytes = 20 << 20
	uploadField           = "file"
)

// Handler handles upload, browse and edit endpoints.
type Handler struct {
	svc            Service
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

// WithMaxUploadBytes bounds uploaded documents and attachments.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: logger, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register registers the action-plan routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/uploads/preview", h.handlePreview)
	r.Post("/uploads", h.handleImport)
	r.Get("/enterprises/identifiers", h.handleListIdentifiers)
	r.Get("/findings", h.handleListFindings)
	r.Patch("/findings/{id}", h.handleUpdateFinding)
	r.Post("/findings/{id}/attachments", h.handleAttach)
}

type previewResponse struct {
	Metadata models.AuditMetadata   `json:"metadata"`
	Findings []models.FindingRecord `json:"findings"`
	Count    int                    `json:"count"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, _, err := h.readUpload(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid upload")
		return
	}
	ext, err := h.svc.Preview(ctx, doc)
	if err != nil {
		h.fail(ctx, w, err, "preview failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, previewResponse{
		Metadata: ext.Metadata,
		Findings: ext.Findings,
		Count:    len(ext.Findings),
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, filename, err := h.readUpload(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid upload")
		return
	}
	result, err := h.svc.Import(ctx, doc)
	if err != nil {
		h.fail(ctx, w, err, "import failed", "filename", filename)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListIdentifiers(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListIdentifiers(r.Context())
	if err != nil {
		h.fail(r.Context(), w, err, "list identifiers failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"identifiers": ids})
}

func (h *Handler) handleListFindings(w http.ResponseWriter, r *http.Request) {
	coids := pstrings.SplitList(r.URL.Query()["coid"]...)
	findings, err := h.svc.ListFindings(r.Context(), coids...)
	if err != nil {
		h.fail(r.Context(), w, err, "list findings failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"findings": findings,
		"count":    len(findings),
	})
}

func (h *Handler) handleUpdateFinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := findingID(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid finding id")
		return
	}

	var update models.FindingUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		h.fail(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"), "invalid update request")
		return
	}

	finding, err := h.svc.UpdateFinding(ctx, id, update)
	if err != nil {
		h.fail(ctx, w, err, "update finding failed", "finding_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, finding)
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := findingID(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid finding id")
		return
	}
	data, filename, err := h.readUpload(r)
	if err != nil {
		h.fail(ctx, w, err, "invalid attachment")
		return
	}
	att, err := h.svc.AttachFile(ctx, id, filename, data)
	if err != nil {
		h.fail(ctx, w, err, "attach file failed", "finding_id", id)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, att)
}

func findingID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "finding id must be a UUID")
	}
	return id, nil
}

// readUpload returns the bytes and file name of a multipart "file" part, or
// of the raw body for non-multipart requests.
func (h *Handler) readUpload(r *http.Request) ([]byte, string, error) {
	body := http.MaxBytesReader(nil, r.Body, h.maxUploadBytes+1<<10)
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		src      io.Reader = body
		filename           = r.URL.Query().Get("filename")
	)
	if strings.HasPrefix(mediaType, "multipart/") {
		part, name, err := multipartFile(body, params["boundary"])
		if err != nil {
			return nil, "", err
		}
		src, filename = part, name
	}

	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", h.tooLarge()
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, "", h.tooLarge()
	}
	if len(data) == 0 {
		return nil, "", dErrors.New(dErrors.CodeBadRequest, "file is required")
	}
	return data, filename, nil
}

func (h *Handler) tooLarge() error {
	return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
}

// fail logs err at a level matching its code and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string, attrs ...any) {
	attrs = append(attrs, "error", err, "request_id", requestcontext.RequestID(ctx))
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeGateway, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
