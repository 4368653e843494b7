package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saiten-app/core/internal/middleware"
	"github.com/saiten-app/core/internal/pkg/response"
)

// Handler exposes the grading pipeline over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates the grading handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the grading routes on the given group.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.POST("/grade", h.Grade)
}

// Grade handles POST /grading/grade: a multipart batch of labels plus a
// shared file set.
func (h *Handler) Grade(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		response.Unauthorized(c)
		return
	}

	req, err := h.parseRequest(c, userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Grade(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuotaExceeded):
			response.QuotaExceeded(c, "usage limit reached, upgrade your plan to continue grading")
		default:
			h.logger.Error("grading batch failed",
				zap.String("request_id", middleware.RequestID(c)),
				zap.Error(err))
			response.InternalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) parseRequest(c *gin.Context, userID string) (*Request, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	labels, err := parseLabels(formValue(form, "labels"))
	if err != nil {
		return nil, err
	}

	var ranges *PageRanges
	if raw := formValue(form, "pageRanges"); raw != "" {
		ranges = &PageRanges{}
		if err := json.Unmarshal([]byte(raw), ranges); err != nil {
			return nil, fmt.Errorf("invalid pageRanges: %w", err)
		}
	}

	pages := map[string]int{}
	if raw := formValue(form, "pages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &pages); err != nil {
			return nil, fmt.Errorf("invalid pages: %w", err)
		}
	}

	confirmedTexts, err := parseStringMap(formValue(form, "confirmedTexts"), "confirmedTexts")
	if err != nil {
		return nil, err
	}
	regradeTokens, err := parseStringMap(formValue(form, "regradeTokens"), "regradeTokens")
	if err != nil {
		return nil, err
	}

	files, err := collectFiles(form, pages)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("at least one file is required")
	}

	return &Request{
		UserID:            userID,
		Labels:            labels,
		Files:             files,
		PageRanges:        ranges,
		ConfirmedTexts:    confirmedTexts,
		RegradeTokens:     regradeTokens,
		Strictness:        ParseStrictness(formValue(form, "strictness")),
		DeviceFingerprint: strings.TrimSpace(formValue(form, "deviceFingerprint")),
	}, nil
}

func parseLabels(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("labels is required")
	}
	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil, fmt.Errorf("invalid labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("labels must contain at least one entry")
	}
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			return nil, errors.New("labels must be non-empty strings")
		}
	}
	return labels, nil
}

func parseStringMap(raw, field string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return out, nil
}

// collectFiles flattens the form file fields into uploaded parts. The field
// name carries the explicit role tag; "files" entries stay untagged and go
// through filename classification.
func collectFiles(form *multipart.Form, pages map[string]int) ([]UploadedFilePart, error) {
	fields := []struct {
		name string
		role FileRole
	}{
		{"student", RoleStudent},
		{"problem", RoleProblem},
		{"model", RoleModelAnswer},
		{"files", RoleOther},
	}

	var out []UploadedFilePart
	for _, field := range fields {
		for _, fh := range form.File[field.name] {
			part, err := readFilePart(fh, field.role, pages)
			if err != nil {
				return nil, err
			}
			out = append(out, part)
		}
	}
	return out, nil
}

func readFilePart(fh *multipart.FileHeader, role FileRole, pages map[string]int) (UploadedFilePart, error) {
	f, err := fh.Open()
	if err != nil {
		return UploadedFilePart{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return UploadedFilePart{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return UploadedFilePart{}, fmt.Errorf("upload %q is empty", fh.Filename)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	part := UploadedFilePart{
		Buffer:         data,
		MIMEType:       mimeType,
		Name:           fh.Filename,
		SourceFileName: fh.Filename,
		Role:           role,
	}
	if page, ok := pages[fh.Filename]; ok {
		part.PageNumber = page
	}
	return part, nil
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
