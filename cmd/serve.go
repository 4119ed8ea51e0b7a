package cmd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/constants"
	"github.com/jsphweid/choirgen/db"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/render"
	"github.com/jsphweid/choirgen/rhythm"
	"github.com/jsphweid/choirgen/validate"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the composition HTTP API",
	Long:  `Runs the composition HTTP API`,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

var renderer = render.New()

var (
	storeOnce sync.Once
	store     *db.Store
	storeErr  error
)

func getStore() (*db.Store, error) {
	storeOnce.Do(func() {
		store, storeErr = db.NewStore()
	})
	return store, storeErr
}

// NewRouter builds the API surface. Exposed so tests can run the full
// stack through httptest.
func NewRouter() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/compositions", HandleCompose).Methods("POST")
	router.HandleFunc("/end-scores", HandleComposeEndScore).Methods("POST")
	router.HandleFunc("/harmonizations", HandleHarmonize).Methods("POST")
	router.HandleFunc("/refinements", HandleRefine).Methods("POST")
	router.HandleFunc("/refinements/satb", HandleRefineSATB).Methods("POST")
	router.HandleFunc("/validations", HandleValidate).Methods("POST")
	router.HandleFunc("/exports/musicxml", HandleExportMusicXML).Methods("POST")
	router.HandleFunc("/exports/midi", HandleExportMIDI).Methods("POST")
	router.HandleFunc("/artifacts/{key}", HandleGetArtifact).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{constants.GetAllowedOrigin()},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return requestLogging(c.Handler(router))
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
		slog.Info("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func serve() {
	addr := ":" + constants.GetPort()
	slog.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, NewRouter()); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "could not parse request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error tiers onto status codes: structural input
// errors are 400, constraint infeasibilities 422 with their hint,
// exhausted generation 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var infeasible *rhythm.InfeasibleError
	switch {
	case compose.IsStructural(err):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.As(err, &infeasible):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Error: infeasible.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
	}
}

func HandleCompose(w http.ResponseWriter, r *http.Request) {
	var req model.CompositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, warnings, err := compose.GenerateMelody(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MelodyResponse{Score: *score, Warnings: warnings})
}

func HandleHarmonize(w http.ResponseWriter, r *http.Request) {
	var req model.HarmonizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, warnings, err := compose.Harmonize(&req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SATBResponse{
		Score:              *score,
		Warnings:           warnings,
		HarmonizationNotes: score.Meta.Rationale,
	})
}

func HandleComposeEndScore(w http.ResponseWriter, r *http.Request) {
	var req model.CompositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, warnings, err := compose.GenerateScore(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SATBResponse{
		Score:              *score,
		Warnings:           warnings,
		HarmonizationNotes: score.Meta.Rationale,
	})
}

func HandleRefineSATB(w http.ResponseWriter, r *http.Request) {
	var req model.RefineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, warnings, err := compose.RefineSATB(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SATBResponse{
		Score:              *score,
		Warnings:           warnings,
		HarmonizationNotes: score.Meta.Rationale,
	})
}

func HandleRefine(w http.ResponseWriter, r *http.Request) {
	var req model.RefineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, warnings, err := compose.Refine(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MelodyResponse{Score: *score, Warnings: warnings})
}

func HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req model.ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	diags := validate.Check(&req.Score)
	writeJSON(w, http.StatusOK, model.ValidateResponse{
		Valid:       len(model.FatalDiagnostics(diags)) == 0,
		Diagnostics: diags,
	})
}

func HandleExportMusicXML(w http.ResponseWriter, r *http.Request) {
	handleExport(w, r, render.FormatMusicXML, "application/vnd.recordare.musicxml+xml")
}

func HandleExportMIDI(w http.ResponseWriter, r *http.Request) {
	handleExport(w, r, render.FormatMIDI, "audio/midi")
}

func handleExport(w http.ResponseWriter, r *http.Request, format render.Format, contentType string) {
	var req model.ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, key, err := renderer.Render(&req.Score, format)
	if err != nil {
		writeError(w, err)
		return
	}
	if constants.GetArtifactStoreEnabled() {
		if s, err := getStore(); err == nil {
			if err := s.PutArtifact(key, contentType, data); err != nil {
				slog.Warn("artifact store put failed", "key", key, "error", err)
			}
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Artifact-Key", key)
	w.Write(data)
}

// HandleGetArtifact serves a previously exported artifact by its
// X-Artifact-Key, so a share link can re-download without re-posting
// the score.
func HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !constants.GetArtifactStoreEnabled() {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "artifact store is disabled"})
		return
	}
	s, err := getStore()
	if err != nil {
		writeError(w, err)
		return
	}
	data, contentType, err := s.GetArtifact(key)
	if err != nil {
		writeError(w, err)
		return
	}
	if data == nil {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "no artifact stored under " + key})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
