package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/kindlyrobotics/qshare/internal/config"
	"github.com/kindlyrobotics/qshare/internal/db"
	"github.com/kindlyrobotics/qshare/internal/envelope"
	"github.com/kindlyrobotics/qshare/internal/identity"
	"github.com/kindlyrobotics/qshare/internal/ratelimit"
	"github.com/kindlyrobotics/qshare/internal/storage"
)

// identityHeader carries the caller's identity string. Session-token
// issuance and validation are an external collaborator to this core (see
// spec §1); this stub reads an already-validated identity out of a header
// rather than perform real authentication.
const identityHeader = "X-Identity"

type contextKey string

const identityContextKey contextKey = "identity"

type Server struct {
	db              *db.DB
	envelopeService *envelope.Service
	identityService *identity.Service
	rateLimiter     *ratelimit.Limiter
}

func main() {
	log.Println("[Server] Starting qshare core...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Invalid configuration: %v", err)
	}

	database, err := db.NewDB()
	if err != nil {
		log.Fatalf("[Server] Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.RunMigrations("migrations"); err != nil {
		log.Fatalf("[Server] Failed to run migrations: %v", err)
	}

	storageService, err := storage.NewService()
	if err != nil {
		log.Fatalf("[Server] Failed to initialize storage service: %v", err)
	}

	identityService := identity.NewService(database.Postgres)
	sessions, err := envelope.NewSessionStore(database.Redis, cfg.ServerSecret)
	if err != nil {
		log.Fatalf("[Server] Failed to initialize session store: %v", err)
	}
	envelopeService := envelope.NewService(database.Postgres, storageService, sessions, identityService, cfg.ServerSecret)
	rateLimiter := ratelimit.NewLimiter(database.Redis)

	server := &Server{
		db:              database,
		envelopeService: envelopeService,
		identityService: identityService,
		rateLimiter:     rateLimiter,
	}

	router := server.setupRouter()

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[Server] HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("[Server] Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Server exited gracefully")
}

func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)

	router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	router.HandleFunc("/api/kyber-key", s.identityMiddleware(s.handleBeginSession)).Methods("GET")
	router.HandleFunc("/api/upload", s.identityMiddleware(s.handleUpload)).Methods("POST")
	router.HandleFunc("/api/download", s.identityMiddleware(s.handleDownload)).Methods("POST")
	router.HandleFunc("/api/activity", s.identityMiddleware(s.handleActivity)).Methods("GET")
	router.HandleFunc("/api/received-files", s.identityMiddleware(s.handleReceivedFiles)).Methods("GET")
	router.HandleFunc("/api/shared-files", s.identityMiddleware(s.handleSharedFiles)).Methods("GET")

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+identityHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identityMiddleware reads the caller's identity from identityHeader. The
// header is assumed already validated by a collaborator in front of this
// service (session-token issuance/validation is out of this core's scope).
func (s *Server) identityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(identityHeader)
		if id == "" {
			http.Error(w, "identity required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func identityFromContext(r *http.Request) string {
	id, _ := r.Context().Value(identityContextKey).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Health(ctx); err != nil {
		http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleBeginSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.envelopeService.BeginSession(identityFromContext(r))
	if err != nil {
		log.Printf("[Server] begin session failed: %v", err)
		http.Error(w, "failed to begin session", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// handleUpload parses the multipart body (the peer-encrypted file buffers
// plus form fields whose per-file arrays arrive as JSON-encoded strings;
// see decodeUploadForm) and hands it to IngestUpload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	identityID := identityFromContext(r)

	if err := s.rateLimiter.CheckUpload(r.Context(), identityID, r.RemoteAddr); err != nil {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	const maxUploadMemory = 64 << 20 // 64MB held in memory before spilling to disk
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	dto, files, err := decodeUploadForm(r)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	if err := s.envelopeService.IngestUpload(r.Context(), identityID, files, dto); err != nil {
		writeEnvelopeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func decodeUploadForm(r *http.Request) (*envelope.FileUploadDTO, []envelope.UploadFile, error) {
	form := r.MultipartForm

	recipientEmail := first(form.Value["recipient_email"])
	if recipientEmail == "" {
		return nil, nil, fmt.Errorf("%w: recipient_email", envelope.ErrMalformedJSON)
	}
	dlPublicKey := first(form.Value["dl_public_key"])
	if dlPublicKey == "" {
		return nil, nil, fmt.Errorf("%w: dl_public_key", envelope.ErrMalformedJSON)
	}
	kyberKey := first(form.Value["kyber_key"])
	if kyberKey == "" {
		return nil, nil, fmt.Errorf("%w: kyber_key", envelope.ErrMalformedJSON)
	}

	dto := &envelope.FileUploadDTO{
		RecipientEmail: recipientEmail,
		DLPublicKey:    dlPublicKey,
		KyberKey:       kyberKey,
		SessionID:      first(form.Value["session_id"]),
	}

	if err := json.Unmarshal([]byte(first(form.Value["init_vectors"])), &dto.InitVectors); err != nil {
		return nil, nil, fmt.Errorf("%w: init_vectors", envelope.ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(first(form.Value["file_names"])), &dto.FileNames); err != nil {
		return nil, nil, fmt.Errorf("%w: file_names", envelope.ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(first(form.Value["file_sizes"])), &dto.FileSizes); err != nil {
		return nil, nil, fmt.Errorf("%w: file_sizes", envelope.ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(first(form.Value["file_types"])), &dto.FileTypes); err != nil {
		return nil, nil, fmt.Errorf("%w: file_types", envelope.ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(first(form.Value["file_signatures"])), &dto.FileSignatures); err != nil {
		return nil, nil, fmt.Errorf("%w: file_signatures", envelope.ErrMalformedJSON)
	}

	if expiration, err := strconv.Atoi(first(form.Value["expiration"])); err == nil {
		dto.Expiration = expiration
	}
	if downloadCount, err := strconv.Atoi(first(form.Value["download_count"])); err == nil {
		dto.DownloadCount = downloadCount
	}
	dto.Anonymous = first(form.Value["anonymous"]) == "true"

	fileHeaders := form.File["files"]
	files := make([]envelope.UploadFile, len(fileHeaders))
	for i, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: files[%d]", envelope.ErrMalformedJSON, i)
		}
		buf, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: files[%d]", envelope.ErrMalformedJSON, i)
		}

		files[i] = envelope.UploadFile{Ciphertext: buf, Name: fh.Filename, Size: fh.Size}
	}

	return dto, files, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	identityID := identityFromContext(r)

	var dto envelope.FileDownloadDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := s.rateLimiter.CheckDownload(r.Context(), identityID, dto.FileID, r.RemoteAddr); err != nil {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	result, err := s.envelopeService.ServeDownload(r.Context(), identityID, &dto)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	w.Header().Set("X-File-Name", result.FileName)
	w.Header().Set("X-IV", result.IV)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"file_data": result.FileData,
		"u":         result.U,
		"v":         result.V,
		"iv":        result.IV,
		"file_name": result.FileName,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.envelopeService.ListActivity(r.Context(), identityFromContext(r))
	if err != nil {
		log.Printf("[Server] list activity failed: %v", err)
		http.Error(w, "failed to list activity", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleReceivedFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.envelopeService.ListReceived(r.Context(), identityFromContext(r))
	if err != nil {
		log.Printf("[Server] list received failed: %v", err)
		http.Error(w, "failed to list received files", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleSharedFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.envelopeService.ListShared(r.Context(), identityFromContext(r))
	if err != nil {
		log.Printf("[Server] list shared failed: %v", err)
		http.Error(w, "failed to list shared files", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

// writeEnvelopeError maps the core's tagged errors (§7) to HTTP status
// classes without leaking which cryptographic step failed.
func writeEnvelopeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, envelope.ErrMalformedJSON),
		errors.Is(err, envelope.ErrRecipientUnknown),
		errors.Is(err, envelope.ErrSelfSend),
		errors.Is(err, envelope.ErrKeyMaterialTooShort),
		errors.Is(err, envelope.ErrSignatureInvalid),
		errors.Is(err, envelope.ErrSessionKeyMissing),
		errors.Is(err, envelope.ErrDecryptionFailed),
		errors.Is(err, envelope.ErrForbidden),
		errors.Is(err, envelope.ErrExpired),
		errors.Is(err, envelope.ErrDownloadLimitReached):
		http.Error(w, signatureSafeMessage(err), http.StatusBadRequest)
	case errors.Is(err, envelope.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		log.Printf("[Server] internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// signatureSafeMessage collapses every cryptographic-failure error into one
// message so a client can't distinguish "wrong key" from "wrong padding"
// from "tampered signature" (spec §7's padding/comparison-oracle guard).
func signatureSafeMessage(err error) string {
	switch {
	case errors.Is(err, envelope.ErrSignatureInvalid),
		errors.Is(err, envelope.ErrSessionKeyMissing),
		errors.Is(err, envelope.ErrDecryptionFailed):
		return "signature invalid"
	default:
		return err.Error()
	}
}
