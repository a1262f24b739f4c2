// Package handlers exposes the signing services over HTTP.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/services"
	"github.com/Lllllllleong/contractsigning/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxBodyBytes bounds request bodies; a drawn signature is well below this.
const maxBodyBytes = 10 << 20

type Enroller interface {
	Process(ctx context.Context, req *models.EnrollRequest) (*models.EnrollResponse, error)
}

type Signer interface {
	Document(ctx context.Context, id string) ([]byte, error)
	Process(ctx context.Context, req *models.FinalizeRequest) (*models.FinalizeResponse, error)
}

type Cleaner interface {
	Process(ctx context.Context) (*models.CleanupResponse, error)
}

// FileReader serves published signed contracts.
type FileReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Deps are everything the router needs. Files may be nil when signed
// contracts are served by the blob store itself.
type Deps struct {
	Enroll        Enroller
	Signing       Signer
	Cleanup       Cleaner
	Files         FileReader
	SigningPage   []byte
	CronSecret    string
	AllowedOrigin string
}

type api struct {
	Deps
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if d.AllowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{d.AllowedOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/enroll", a.handleEnroll)
	r.Post("/api/inscribe", a.handleEnroll)
	r.Get("/sign/{id}", a.handleSigningPage)
	r.Get("/document/{id}", a.handleDocument)
	r.Get("/pdf/{id}", a.handleDocument)
	r.Post("/finalize", a.handleFinalize)
	r.Post("/api/finalize-signature", a.handleFinalize)
	r.Get("/cron/cleanup", a.handleCleanup)
	r.Get("/api/cron/clear-folders", a.handleCleanup)
	if d.Files != nil {
		r.Get("/files/signed/{name}", a.handleSignedFile)
	}
	return r
}

func (a *api) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req models.EnrollRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Could not decode enrollment body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Solicitud inválida", Details: err.Error()})
		return
	}
	res, err := a.Enroll.Process(r.Context(), &req)
	if err != nil {
		writeError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleSigningPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(a.SigningPage)
}

func (a *api) handleDocument(w http.ResponseWriter, r *http.Request) {
	pdf, err := a.Signing.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, false)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(pdf)
}

func (a *api) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req models.FinalizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Could not decode finalize body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Solicitud inválida", Details: err.Error()})
		return
	}
	res, err := a.Signing.Process(r.Context(), &req)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if !authorized(r.Header.Get("Authorization"), a.CronSecret) {
		slog.Warn("Rejected unauthorized cleanup request.")
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "No autorizado"})
		return
	}
	res, err := a.Cleanup.Process(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Error durante la limpieza.", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleSignedFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := a.Files.Get(r.Context(), "signed/"+name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("Failed to read signed contract", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(data)
}

// authorized checks a bearer token against secret. An empty secret rejects
// every request.
func authorized(header, secret string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// writeError maps service errors to responses. Internal failures are always
// logged; their text reaches the client only when exposeInternal is set.
func writeError(w http.ResponseWriter, err error, exposeInternal bool) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Faltan datos obligatorios", Details: err.Error()})
	case errors.Is(err, lifecycle.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Documento no encontrado o ya firmado"})
	default:
		slog.Error("Request failed", "error", err)
		res := models.ErrorResponse{Error: "Error interno del servidor"}
		if exposeInternal {
			res.Details = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
