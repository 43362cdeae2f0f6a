/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the
recommendation pipeline, upload storage, and database index together.
*/
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"nutribot/internal/database"
	"nutribot/internal/geminiservice"
	"nutribot/internal/knowledge"
	"nutribot/internal/storage"
)

const (
	defaultFoodsDataPath  = "data/foods.json"
	defaultUploadDir      = "uploads"
	defaultMaxUploadBytes = 10 << 20 // 10 MiB
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db indexes upload metadata; nil when the database is not configured.
	db database.Service

	// kb is the read-only condition-and-food knowledge base.
	kb *knowledge.Base

	// pipeline is the grounded recommendation pipeline.
	pipeline *geminiservice.Service

	// store persists uploaded report files.
	store *storage.Store
}

// NewServer initializes a new Server instance and returns a configured
// *http.Server. Configuration comes from environment variables with
// production-ready network timeouts.
func NewServer() *http.Server {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}

	foodsPath := os.Getenv("FOODS_DATA_PATH")
	if foodsPath == "" {
		foodsPath = defaultFoodsDataPath
	}
	kb, err := knowledge.Load(foodsPath)
	if err != nil {
		// A missing knowledge file degrades grounding but must not stop
		// the service from answering.
		log.Warn().Err(err).Msg("Knowledge base unavailable, running ungrounded")
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = defaultUploadDir
	}
	maxUploadBytes := int64(defaultMaxUploadBytes)
	if v, err := strconv.ParseInt(os.Getenv("MAX_UPLOAD_BYTES"), 10, 64); err == nil && v > 0 {
		maxUploadBytes = v
	}
	store, err := storage.NewStore(uploadDir, maxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload storage")
	}

	db, err := database.NewService()
	if err != nil {
		log.Warn().Err(err).Msg("Upload index unavailable, using sidecar metadata only")
		db = nil
	}

	gemini := geminiservice.NewClient(os.Getenv("GEMINI_API_KEY"))

	newApp := &Server{
		port:     port,
		db:       db,
		kb:       kb,
		pipeline: geminiservice.New(kb, gemini, gemini),
		store:    store,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(), // Injected from routes.go
		IdleTimeout:  time.Minute,             // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second,        // Maximum duration for reading the entire request.
		WriteTimeout: 60 * time.Second,        // Generation calls can take a while; give writes headroom.
	}

	return server
}
