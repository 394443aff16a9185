package handlers

import (
	"bytes"
	"elmah/codec"
	"elmah/core"
	"elmah/models"
	"elmah/service"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 15
	maxPageSize     = 100

	// maxBodyBytes bounds a POSTed error document.
	maxBodyBytes = 4 << 20
)

// Handler serves the error log API.
type Handler struct {
	errors  *service.ErrorService
	baseURL string
	logger  *slog.Logger
}

// NewHandler builds the API handlers. baseURL prefixes links in CSV exports;
// when empty it is derived from each request.
func NewHandler(svc *service.ErrorService, baseURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		errors:  svc,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ListErrors returns one page of errors: ?app=&page=&page_size= with a zero-based page.
func (h *Handler) ListErrors(c *gin.Context) {
	page, ok := queryInt(c, "page", 0)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "page_size", defaultPageSize)
	if !ok {
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, total, err := h.errors.GetErrors(c.Request.Context(), c.Query("app"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]models.ErrorSummary, 0, len(entries))
	for _, entry := range entries {
		items = append(items, models.NewErrorSummary(entry))
	}
	okV2(c, http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"entries":   items,
	})
}

// GetError returns the full detail of one error.
func (h *Handler) GetError(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	okV2(c, http.StatusOK, models.NewErrorDetail(entry))
}

// GetErrorXML returns one error as its canonical XML document.
func (h *Handler) GetErrorXML(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, entry.Error()); err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", buf.Bytes())
}

// LogError accepts a canonical XML document and logs it.
func (h *Handler) LogError(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	e, err := codec.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errV2(c, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "Request body too large", nil)
			return
		}
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid error document", err.Error())
		return
	}

	id, err := h.errors.Log(c.Request.Context(), c.Query("app"), e)
	if err != nil {
		h.fail(c, err)
		return
	}
	okV2(c, http.StatusCreated, gin.H{"id": id})
}

// Download streams every error of the application as CSV.
func (h *Handler) Download(c *gin.Context) {
	app := c.Query("app")
	if _, err := h.errors.Store(c.Request.Context(), app); err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="errors.csv"`)
	c.Status(http.StatusOK)

	n, err := h.errors.Export(c.Request.Context(), app, c.Writer, h.linkBase(c))
	if err != nil {
		// Headers are already written.
		h.logger.Error("csv export aborted", "application", app, "rows", n, "error", err)
		return
	}
	h.logger.Debug("csv export finished", "application", app, "rows", n)
}

func (h *Handler) lookup(c *gin.Context) (*models.ErrorLogEntry, bool) {
	entry, err := h.errors.GetError(c.Request.Context(), c.Query("app"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if entry == nil {
		errV2(c, http.StatusNotFound, CodeNotFound, "Error not found", c.Param("id"))
		return nil, false
	}
	return entry, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var formatErr *codec.FormatError
	switch {
	case errors.Is(err, core.ErrInvalidID):
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid error id", err.Error())
	case errors.Is(err, core.ErrInvalidArgument):
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid paging arguments", err.Error())
	case errors.Is(err, service.ErrUnknownApplication):
		errV2(c, http.StatusNotFound, CodeNotFound, "Unknown application", err.Error())
	case errors.As(err, &formatErr):
		h.logger.Error("stored error is unreadable", "path", c.Request.URL.Path, "error", err)
		errV2(c, http.StatusInternalServerError, CodeInternal, "Stored error is unreadable", nil)
	default:
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		errV2(c, http.StatusInternalServerError, CodeInternal, "Internal error", nil)
	}
}

func (h *Handler) linkBase(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid "+name, raw)
		return 0, false
	}
	return v, true
}
