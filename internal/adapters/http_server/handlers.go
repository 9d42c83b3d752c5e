package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"propsearch/internal/app"
	"propsearch/internal/domain"
)

const (
	maxBodyBytes = 64 << 10
	maxQueryLen  = 500
)

// RunReader looks up persisted search runs; nil disables /v1/runs.
type RunReader interface {
	Get(ctx context.Context, requestID string) (domain.SearchRun, error)
}

type Handlers struct {
	S    *app.Orchestrator
	Runs RunReader
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/search", h.search)
	s.mux.Get("/v1/intent", h.intent)
	s.mux.Get("/v1/domains/tier", h.domainTier)
	s.mux.Get("/v1/runs/{id}", h.getRun)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any, etag bool) {
	tag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not encode response")
		return
	}
	if etag && tag != "" {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == tag {
			w.Header().Set("ETag", tag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", tag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func validQuery(q string) (string, string) {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return "", "query must not be empty"
	case !utf8.ValidString(q):
		return "", "query must be valid UTF-8"
	case utf8.RuneCountInString(q) > maxQueryLen:
		return "", "query is too long"
	}
	return q, ""
}

func parseVertical(s string) (domain.Vertical, bool) {
	return domain.ParseVertical(strings.ToLower(strings.TrimSpace(s)))
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		detail := "body must be a JSON object"
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			detail = "body too large"
		} else if errors.Is(err, io.EOF) {
			detail = "body is empty"
		}
		writeProblem(w, http.StatusBadRequest, "Invalid Request", detail)
		return
	}
	q, bad := validQuery(req.Query)
	if bad != "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", bad)
		return
	}
	v, ok := parseVertical(string(req.Vertical))
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Vertical", "vertical must be one of auto, real_estate, legal, news, retail, general")
		return
	}
	if req.UFRate < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid UF Rate", "uf_rate must not be negative")
		return
	}

	res := h.S.Search(r.Context(), domain.SearchRequest{Query: q, Vertical: v, UFRate: req.UFRate})
	writeJSON(w, r, res, false)
}

func (h *Handlers) intent(w http.ResponseWriter, r *http.Request) {
	q, bad := validQuery(r.URL.Query().Get("q"))
	if bad != "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", bad)
		return
	}
	writeJSON(w, r, h.S.Intent(q), true)
}

func (h *Handlers) domainTier(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "url is required")
		return
	}
	v, ok := parseVertical(r.URL.Query().Get("vertical"))
	if !ok || v == domain.VerticalAuto {
		writeProblem(w, http.StatusBadRequest, "Invalid Vertical", "vertical must be one of real_estate, legal, news, retail, general")
		return
	}
	info := h.S.DomainTier(raw, v)
	if info.Domain == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "url has no host")
		return
	}
	writeJSON(w, r, info, true)
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "run log is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a request UUID")
		return
	}
	run, err := h.Runs.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "run not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("request_id", id).Msg("get run failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not read run")
		return
	}
	writeJSON(w, r, run, true)
}
