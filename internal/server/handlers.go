package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/hyperjump/lexembed/internal/embedding"
	"go.uber.org/zap"
)

const msgModelNotLoaded = "Model not loaded"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	dimension := s.svc.Status().Dimensions
	if dimension == 0 {
		dimension = s.config.Model.HiddenSize
	}
	endpoints := map[string]string{
		"/health":       "Health check",
		"/embed":        "Generate embeddings (POST, CLS pooling)",
		"/embed/legacy": "Generate embeddings (POST, mean pooling, deprecated)",
	}
	if s.metrics != nil && s.config.Metrics.EnabledOrDefault() {
		endpoints[s.config.Metrics.Path] = "Prometheus metrics"
	}
	s.respondJSON(w, http.StatusOK, InfoResponse{
		Name:        "Italian-Legal-BERT Embeddings API",
		Model:       s.config.Model.Name,
		Description: "Embeddings specialized for Italian legal documents",
		Dimension:   dimension,
		Endpoints:   endpoints,
		Compatible:  "ARM64 (Apple Silicon) and x86_64",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Ready() {
		s.respondError(w, http.StatusServiceUnavailable, msgModelNotLoaded)
		return
	}
	st := s.svc.Status()
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Model:        st.Model,
		Device:       string(st.Device),
		Method:       string(st.Pooling),
		Architecture: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	s.embed(w, r, embedding.CanonicalPooling)
}

// handleEmbedLegacy serves mean-pooled vectors for clients built against the first
// version of the API.
func (s *Server) handleEmbedLegacy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Deprecation", "true")
	s.embed(w, r, embedding.PoolingMean)
}

func (s *Server) embed(w http.ResponseWriter, r *http.Request, pooling embedding.Pooling) {
	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Inputs) == 0 {
		s.respondError(w, http.StatusBadRequest, "inputs must not be empty")
		return
	}
	if !s.svc.Ready() {
		s.respondError(w, http.StatusServiceUnavailable, msgModelNotLoaded)
		return
	}

	s.logger.Info("generating embeddings", zap.Int("texts", len(req.Inputs)), zap.String("pooling", string(pooling)))
	vecs, err := s.svc.Embed(r.Context(), req.Inputs, pooling)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			s.respondError(w, http.StatusServiceUnavailable, msgModelNotLoaded)
			return
		}
		s.logger.Error("embedding failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.AddEmbedded(string(pooling), len(vecs))
	s.respondJSON(w, http.StatusOK, vecs)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Detail: message})
}
