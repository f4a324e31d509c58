package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/doctor/internal/api/handlers"
	"github.com/markdave123-py/doctor/internal/config"
	"github.com/markdave123-py/doctor/internal/core/extraction_engine"
	"github.com/markdave123-py/doctor/internal/core/sniffer"
	"github.com/markdave123-py/doctor/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, orchestrator *extraction_engine.Orchestrator, sn *sniffer.Sniffer, convert *services.ConvertService) *Server {
	extractHandler := handlers.NewExtractHandler(orchestrator, cfg.MaxInputBytes)
	utilsHandler := handlers.NewUtilsHandler(sn, convert, cfg.MaxInputBytes)
	convertHandler := handlers.NewConvertHandler(convert, cfg.MaxInputBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Heartbeat detected."))
	})

	// Extraction
	r.Post("/extract/doc/text/", extractHandler.ExtractText)

	// Utilities
	r.Post("/utils/mime-type/", utilsHandler.MimeType)
	r.Post("/utils/file/extension/", utilsHandler.Extension)
	r.Post("/utils/page-count/pdf/", utilsHandler.PageCount)
	r.Post("/utils/audio/duration/", utilsHandler.AudioDuration)

	// Converters
	r.Post("/convert/pdf/thumbnail/", convertHandler.Thumbnail)
	r.Post("/convert/image/pdf/", convertHandler.ImageToPDF)
	r.Post("/convert/images/pdf/", convertHandler.ImagesToPDF)
	r.Post("/convert/audio/mp3/", convertHandler.Audio)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
