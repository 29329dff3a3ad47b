package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/handoff"
	"github.com/derivekit/derivekit/pkg/session"
)

type stepResponse struct {
	Session *domain.Session `json:"session"`
	Step    *domain.Step    `json:"step,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.mgr.Start(r.Context(), in.Name, in.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.mgr.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadFormula(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Expression  string         `json:"expression"`
		Record      map[string]any `json:"record"`
		Format      string         `json:"format"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, step, err := s.mgr.LoadFormula(r.Context(), id, session.FormulaInput{
			Input:       expr.Input{Text: in.Expression, Record: in.Record},
			Format:      expr.Format(in.Format),
			Name:        in.Name,
			Description: in.Description,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stepResponse{Session: sess, Step: step})
	})
}

func (s *Server) applyOperation(w http.ResponseWriter, r *http.Request) {
	var req session.ApplyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, step, err := s.mgr.Apply(r.Context(), id, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stepResponse{Session: sess, Step: step})
	})
}

func (s *Server) recordManual(w http.ResponseWriter, r *http.Request) {
	var rec session.ManualRecord
	if err := decodeBody(r, &rec); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, step, err := s.mgr.RecordManual(r.Context(), id, rec)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stepResponse{Session: sess, Step: step})
	})
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text           string   `json:"text"`
		NoteType       string   `json:"note_type"`
		RelatedSymbols []string `json:"related_symbols"`
		Position       *int     `json:"position"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	note := session.NoteInput{
		Text:           in.Text,
		Type:           domain.NoteType(in.NoteType),
		RelatedSymbols: in.RelatedSymbols,
	}
	s.withBinding(w, r, func(id string) {
		var (
			sess *domain.Session
			step *domain.Step
			err  error
		)
		if in.Position != nil {
			sess, step, err = s.mgr.InsertNote(r.Context(), id, *in.Position, note)
		} else {
			sess, step, err = s.mgr.AddNote(r.Context(), id, note)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stepResponse{Session: sess, Step: step})
	})
}

func (s *Server) listSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.mgr.Steps(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) stepNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "stepNumber"))
	if err != nil {
		s.writeError(w, domain.NewStateError(domain.KindInvalidTarget,
			"step number must be an integer"))
		return 0, false
	}
	return n, true
}

func (s *Server) getStep(w http.ResponseWriter, r *http.Request) {
	n, ok := s.stepNumber(w, r)
	if !ok {
		return
	}
	step, err := s.mgr.Step(r.Context(), chi.URLParam(r, "sessionID"), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) updateStep(w http.ResponseWriter, r *http.Request) {
	n, ok := s.stepNumber(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, step, err := s.mgr.UpdateStep(r.Context(), id, n, fields)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stepResponse{Session: sess, Step: step})
	})
}

func (s *Server) deleteStep(w http.ResponseWriter, r *http.Request) {
	n, ok := s.stepNumber(w, r)
	if !ok {
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, deleted, err := s.mgr.DeleteStep(r.Context(), id, n)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stepResponse{Session: sess, Step: deleted})
	})
}

func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TargetStep int `json:"target_step"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		report, err := s.mgr.Rollback(r.Context(), id, in.TargetStep)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	var opts domain.CompleteOptions
	if err := decodeBody(r, &opts); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		result, err := s.mgr.Complete(r.Context(), id, opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	s.withBinding(w, r, func(id string) {
		sess, err := s.mgr.Abort(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	})
}

func (s *Server) exportHandoff(w http.ResponseWriter, r *http.Request) {
	sess, err := s.mgr.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload, err := handoff.Export(sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) importHandoff(w http.ResponseWriter, r *http.Request) {
	var imp handoff.Import
	if err := decodeBody(r, &imp); err != nil {
		s.writeError(w, err)
		return
	}
	s.withBinding(w, r, func(id string) {
		sess, step, err := s.mgr.RecordManual(r.Context(), id, imp.Record())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, stepResponse{Session: sess, Step: step})
	})
}
