package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"nutribot/internal/geminiservice"
	"nutribot/internal/report"
	"nutribot/internal/storage"
	"nutribot/internal/utility"
)

const serviceVersion = "0.1.0"

// allowedOrigins is the dev frontend allowlist; tighten for production.
var allowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	e.GET("/", s.rootHandler)
	e.GET("/health", s.healthHandler)
	e.GET("/health/db", s.dbHealthHandler)
	e.GET("/health/system", s.systemHealthHandler)

	e.POST("/chat", s.chatHandler)
	e.POST("/scan", s.scanHandler)
	e.POST("/suggest", s.suggestHandler)

	e.POST("/upload", s.uploadHandler)
	e.POST("/files/:file_id/parse", s.parseFileHandler)

	return e
}

// LoggerMiddleware attaches a request-scoped logger carrying a request ID.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Set("logger", &logger)

		return next(c)
	}
}

/* ====================================================================
							Service info
==================================================================== */

func (s *Server) rootHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "NutriBot API is running. See /health.",
	})
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":               true,
		"service":          "NutriBot API",
		"version":          serviceVersion,
		"knowledge_loaded": s.kb.Loaded(),
	})
}

func (s *Server) dbHealthHandler(c echo.Context) error {
	if s.db == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "disabled",
			"message": "upload index database is not configured",
		})
	}
	return c.JSON(http.StatusOK, s.db.Health())
}

/* ====================================================================
						Recommendation endpoints
==================================================================== */

// ChatRequest is the text-query payload. A report can arrive either as
// inline text or as the ID of a previously uploaded file.
type ChatRequest struct {
	Message      string                 `json:"message"`
	Profile      *geminiservice.Profile `json:"profile,omitempty"`
	ReportText   string                 `json:"report_text,omitempty"`
	ReportFileID string                 `json:"report_file_id,omitempty"`
}

// ScanRequest is the image-query payload. Image is a base64 data URL from
// the frontend camera capture.
type ScanRequest struct {
	Message      string                 `json:"message,omitempty"`
	Profile      *geminiservice.Profile `json:"profile,omitempty"`
	ReportText   string                 `json:"report_text,omitempty"`
	ReportFileID string                 `json:"report_file_id,omitempty"`
	Image        string                 `json:"image"`
}

func (s *Server) chatHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Field 'message' is required"})
	}

	reportText, err := s.resolveReportText(c, req.ReportText, req.ReportFileID)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	envelope, err := s.pipeline.HandleTextQuery(ctx, geminiservice.TextQuery{
		Message:    req.Message,
		Profile:    req.Profile,
		ReportText: reportText,
	})
	if err != nil {
		log.Error().Err(err).Msg("Text query generation failed")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "AI service temporarily unavailable. Please try again later.",
		})
	}

	return c.JSON(http.StatusOK, envelope)
}

func (s *Server) scanHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ScanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Image == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Field 'image' is required"})
	}

	reportText, err := s.resolveReportText(c, req.ReportText, req.ReportFileID)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	envelope, err := s.pipeline.HandleImageQuery(ctx, geminiservice.ImageQuery{
		Message:    req.Message,
		Profile:    req.Profile,
		ReportText: reportText,
		Image:      req.Image,
	})
	if err != nil {
		log.Error().Err(err).Msg("Image query generation failed")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "AI service temporarily unavailable. Please try again later.",
		})
	}

	return c.JSON(http.StatusOK, envelope)
}

// suggestHandler serves the deterministic rules-only path: condition
// guidance and matched foods straight from the knowledge base, no model.
func (s *Server) suggestHandler(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Field 'message' is required"})
	}

	g, grounded := s.pipeline.LocalSuggestion(req.Message)
	resp := map[string]interface{}{
		"grounded":      grounded,
		"condition":     g.ConditionKey,
		"matched_foods": g.FoodList(),
	}
	if g.ConditionEntry != nil {
		resp["eat"] = g.ConditionEntry.Eat
		resp["avoid"] = g.ConditionEntry.Avoid
		resp["timing"] = g.ConditionEntry.Timing
	}
	return c.JSON(http.StatusOK, resp)
}

// resolveReportText prefers inline report text and otherwise extracts text
// from a stored upload.
func (s *Server) resolveReportText(c echo.Context, inline, fileID string) (string, error) {
	if inline != "" || fileID == "" {
		return inline, nil
	}

	meta, err := s.lookupMeta(c, fileID)
	if err != nil {
		return "", errors.New("unknown report_file_id")
	}

	text, err := report.ExtractText(s.store.PathFor(meta), meta.Mime)
	if err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("Report text extraction failed")
		return "", errors.New("could not extract text from the referenced report")
	}
	return text, nil
}

/* ====================================================================
							Upload endpoints
==================================================================== */

func (s *Server) uploadHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if err := utility.CheckIPRateLimit(utility.GetRealIP(c)); err != nil {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Multipart field 'file' is required"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Could not read uploaded file"})
	}
	defer src.Close()

	meta, err := s.store.Save(src, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Msg("Upload persistence failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to store file"})
	}

	// Index best-effort: the sidecar already holds the metadata.
	if s.db != nil {
		if err := s.db.Queries().InsertUploadFile(ctx, meta); err != nil {
			log.Warn().Err(err).Str("file_id", meta.FileID).Msg("Failed to index upload")
		}
	}

	return c.JSON(http.StatusOK, meta)
}

func (s *Server) parseFileHandler(c echo.Context) error {
	fileID := c.Param("file_id")

	meta, err := s.lookupMeta(c, fileID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No uploaded file with that ID"})
	}

	text, err := report.ExtractText(s.store.PathFor(meta), meta.Mime)
	if err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("Text extraction failed")
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error": "Could not extract text from this file",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"file_id": fileID,
		"text":    text,
	})
}

// lookupMeta consults the database index first and falls back to the
// on-disk sidecar, which is authoritative.
func (s *Server) lookupMeta(c echo.Context, fileID string) (storage.UploadedFileMeta, error) {
	if s.db != nil {
		meta, err := s.db.Queries().GetUploadFile(c.Request().Context(), fileID)
		if err == nil {
			return meta, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("file_id", fileID).Msg("Upload index lookup failed, trying sidecar")
		}
	}
	return s.store.LoadMeta(fileID)
}
