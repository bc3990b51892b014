package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// enableCORS sets permissive CORS headers and answers preflight requests
// with 204 before they reach a handler.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAPIKey validates the Bearer token against the configured key. When
// no key is configured the API is open, which is the default for local use.
func requireAPIKey(expectedKey string, next http.HandlerFunc) http.HandlerFunc {
	if expectedKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		// ConstantTimeCompare takes the same time for every guess of the key's
		// length, so response latency reveals at most whether the length matches.
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Unauthorized: invalid or missing API key",
			})
			return
		}
		next(w, r)
	}
}
