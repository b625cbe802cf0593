package mcp

import (
	"crypto/subtle"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter tracks one remote client's rate limiter and when it
// was last used, so idle entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HTTPHandler exposes the JSON-RPC dispatcher over HTTP POST for
// deployments where a subprocess stdio pipe is impractical. Requests
// are authenticated with a static bearer token and rate limited per
// client address.
type HTTPHandler struct {
	server       *Server
	apiToken     string
	maxBodyBytes int64
	logger       *log.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	perSec   rate.Limit
	burst    int
}

// NewHTTPHandler creates an HTTP handler for the server. apiToken may
// be empty, in which case authentication is disabled (loopback-only
// deployments).
func NewHTTPHandler(server *Server, apiToken string, ratePerSec float64, rateBurst int, maxBodyBytes int64, logger *log.Logger) *HTTPHandler {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	if rateBurst <= 0 {
		rateBurst = 40
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = maxLineBytes
	}
	h := &HTTPHandler{
		server:       server,
		apiToken:     apiToken,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
		limiters:     make(map[string]*clientLimiter),
		perSec:       rate.Limit(ratePerSec),
		burst:        rateBurst,
	}
	go h.evictLoop()
	return h
}

// ServeHTTP accepts a single JSON-RPC payload per POST and replies
// with the serialized response. Notifications get 204 No Content.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.allow(clientKey(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	response, err := h.server.HandleRequest(r.Context(), body)
	if err != nil {
		h.logger.Printf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if response == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(response); err != nil {
		h.logger.Printf("failed to write response: %v", err)
	}
}

// authorized checks the Authorization header against the configured
// token with a constant-time compare.
func (h *HTTPHandler) authorized(r *http.Request) bool {
	if h.apiToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.apiToken)) == 1
}

// allow applies the per-client limiter, creating one on first sight.
func (h *HTTPHandler) allow(key string) bool {
	h.mu.Lock()
	cl, ok := h.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(h.perSec, h.burst)}
		h.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	h.mu.Unlock()
	return cl.limiter.Allow()
}

// evictLoop drops limiters for clients idle longer than ten minutes,
// keeping the limiter map bounded under churning client addresses.
func (h *HTTPHandler) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		h.mu.Lock()
		for key, cl := range h.limiters {
			if cl.lastSeen.Before(cutoff) {
				delete(h.limiters, key)
			}
		}
		h.mu.Unlock()
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
