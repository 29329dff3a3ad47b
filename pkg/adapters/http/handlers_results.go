package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/ports"
)

func (s *Server) repo(w http.ResponseWriter) (ports.ResultRepository, bool) {
	repo := s.mgr.Repository()
	if repo == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "no result archive is configured"})
		return nil, false
	}
	return repo, true
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w)
	if !ok {
		return
	}
	q := ports.ResultQuery{
		Text:     r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Tags:     r.URL.Query()["tag"],
	}
	results, err := repo.Find(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w)
	if !ok {
		return
	}
	result, err := repo.Get(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) updateResult(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w)
	if !ok {
		return
	}
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, err)
		return
	}

	var patch domain.ResultPatch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := dec.Decode(fields); err != nil {
		s.writeError(w, domain.NewStateError(domain.KindImmutableField,
			"only result metadata may change: %v", err))
		return
	}

	result, err := repo.UpdateMetadata(r.Context(), chi.URLParam(r, "resultID"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w)
	if !ok {
		return
	}
	if err := repo.Delete(r.Context(), chi.URLParam(r, "resultID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resultStats(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w)
	if !ok {
		return
	}
	stats, err := repo.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
