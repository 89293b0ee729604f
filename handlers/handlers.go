// Package handlers provides the HTTP handlers of the music API: the landing
// page, the collection read endpoints and the health check.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
)

// RootMessage is the landing page body
const RootMessage = "Only the '/artists' and '/songs' endpoints are available"

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		respondWithServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// respondWithServerError answers with a bare 500. Database faults are not
// told apart and no structured error body is sent.
func respondWithServerError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// ServeRoot answers the landing page
func ServeRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}

// ServeCollection returns every document of collection as a JSON array.
// An empty collection yields [] and any store error a 500.
func ServeCollection(store interfaces.DocumentStore, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.FindAll(r.Context(), collection)
		if err != nil {
			logging.Error("Failed to read collection", "collection", collection, "error", err)
			respondWithServerError(w)
			return
		}

		if docs == nil {
			docs = []interfaces.Document{}
		}

		RespondWithJSON(w, http.StatusOK, docs)
	}
}

// HealthCheck reports database reachability and process details
func HealthCheck(checker interfaces.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, details, httpStatus := checker.HealthCheck(r.Context())

		response := map[string]any{
			"status": status,
			"data":   details,
		}

		RespondWithJSON(w, httpStatus, response)
	}
}
