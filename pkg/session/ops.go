package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/ports"
)

// FormulaInput is one formula handed to LoadFormula, in any notation.
type FormulaInput struct {
	Input       expr.Input
	Format      expr.Format // empty means auto-detect
	Name        string
	Description string
}

// ApplyRequest describes one computed derivation step.
type ApplyRequest struct {
	Operation   domain.Operation `json:"operation"`
	Description string           `json:"description"`

	// Substitute.
	Target      string `json:"target"`
	Replacement string `json:"replacement"`

	// SolveFor, Differentiate, Integrate.
	Variable string `json:"variable"`

	// Simplify strategy.
	Method string `json:"method"`

	// Differentiate order; zero means first derivative.
	Order int `json:"order"`

	// Integrate bounds; both empty means indefinite.
	LowerBound string `json:"lower_bound"`
	UpperBound string `json:"upper_bound"`

	Notes       string   `json:"notes"`
	Assumptions []string `json:"assumptions"`
	Limitations []string `json:"limitations"`
}

// ManualRecord is an externally derived expression appended to the ledger
// without going through the computer.
type ManualRecord struct {
	Expression   string            `json:"expression"`
	Description  string            `json:"description"`
	ExternalTool string            `json:"external_tool"`
	Notes        string            `json:"notes"`
	Assumptions  []string          `json:"assumptions"`
	Limitations  []string          `json:"limitations"`
	Source       domain.StepSource `json:"-"`
}

// NoteInput is a pure annotation.
type NoteInput struct {
	Text           string
	Type           domain.NoteType // empty means observation
	RelatedSymbols []string
}

func (m *Manager) observe(op domain.Operation, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case domain.IsKind(err, domain.KindAlreadyActive),
		domain.IsKind(err, domain.KindAlreadyBound),
		domain.IsKind(err, domain.KindNotActive),
		domain.IsKind(err, domain.KindNotFound),
		domain.IsKind(err, domain.KindNotLastStep),
		domain.IsKind(err, domain.KindInvalidTarget),
		domain.IsKind(err, domain.KindInvalidPosition),
		domain.IsKind(err, domain.KindImmutableField),
		domain.IsKind(err, domain.KindNothingToComplete):
		outcome = "rejected"
	default:
		switch err.(type) {
		case *domain.ComputationError:
			outcome = "compute_error"
		case *domain.PersistenceError:
			outcome = "persist_error"
		default:
			outcome = "error"
		}
	}
	m.stats.Operation(string(op), outcome)
}

// Start creates a new active session and persists it before returning.
func (m *Manager) Start(ctx context.Context, name, description string) (*domain.Session, error) {
	sess := domain.NewSession(uuid.NewString(), name, description)
	err := m.WithLock(ctx, sess.ID, func(ctx context.Context) error {
		if err := m.store.Save(ctx, sess); err != nil {
			m.stats.PersistFailure()
			return &domain.PersistenceError{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session started", "session_id", sess.ID, "name", name)
	return sess, nil
}

// LoadFormula parses one formula and stocks it into the session. The first
// loaded formula seeds the current expression; later loads are additive and
// leave the derivation trajectory where it is.
func (m *Manager) LoadFormula(ctx context.Context, sessionID string, in FormulaInput) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe(domain.OpLoad, err) }()

	format := in.Format
	if format == "" {
		format = expr.FormatAuto
	}
	parsed, err := expr.ParseAs(in.Input, format)
	if err != nil {
		if pe, ok := expr.AsParseError(err); ok {
			m.stats.ParseError(string(pe.Kind))
		}
		return nil, nil, err
	}

	name := in.Name
	if name == "" {
		if rec, rerr := recordName(in.Input); rerr == nil && rec != "" {
			name = rec
		}
	}

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		canonical := parsed.String()
		formula := domain.Formula{
			ID:          uuid.NewString(),
			Name:        name,
			Description: in.Description,
			Raw:         parsed.Original(),
			Expression:  canonical,
			LoadedAt:    nowUTC(),
		}
		s.Formulas = append(s.Formulas, formula)
		mergeSymbols(s, parsed.Variables())

		desc := "Loaded formula"
		if name != "" {
			desc = fmt.Sprintf("Loaded formula %q", name)
		}
		step = &domain.Step{
			Operation:   domain.OpLoad,
			Description: desc,
			Output:      canonical,
			Source:      domain.SourceInternal,
		}
		seed := s.Current == ""
		if serr := s.Append(step, seed); serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// Apply delegates one computation to the computer and, on success, appends
// the resulting step. Any computation failure leaves the ledger unchanged.
func (m *Manager) Apply(ctx context.Context, sessionID string, req ApplyRequest) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe(req.Operation, err) }()

	if !domain.ComputeOperations[req.Operation] {
		return nil, nil, domain.NewStateError(domain.KindInvalidTarget,
			"operation %q is not a computed derivation step", req.Operation)
	}
	if err = validateApply(req); err != nil {
		return nil, nil, err
	}

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		if serr := s.EnsureActive(); serr != nil {
			return serr
		}
		if s.Current == "" {
			return domain.NewStateError(domain.KindNotFound,
				"session %s has no current expression; load a formula first", s.ID)
		}
		current, perr := expr.ParseText(s.Current)
		if perr != nil {
			return fmt.Errorf("stored expression is unreadable: %w", perr)
		}

		creq := ports.ComputeRequest{
			Operation:  req.Operation,
			Expression: current,
			Target:     req.Target,
			Variable:   req.Variable,
			Method:     req.Method,
			Order:      req.Order,
			LowerBound: req.LowerBound,
			UpperBound: req.UpperBound,
		}
		if req.Operation == domain.OpSubstitute {
			repl, rerr := expr.ParseText(req.Replacement)
			if rerr != nil {
				if pe, ok := expr.AsParseError(rerr); ok {
					m.stats.ParseError(string(pe.Kind))
				}
				return rerr
			}
			creq.Replacement = repl
		}

		cctx := ctx
		if m.computeTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, m.computeTimeout)
			defer cancel()
		}
		result, cerr := m.computer.Compute(cctx, creq)
		if cerr != nil {
			return &domain.ComputationError{Op: req.Operation, Err: cerr}
		}

		desc := req.Description
		if desc == "" {
			desc = describeApply(req)
		}
		step = &domain.Step{
			Operation:   req.Operation,
			Description: desc,
			Input:       s.Current,
			Output:      result.String(),
			Notes:       req.Notes,
			Assumptions: append([]string(nil), req.Assumptions...),
			Limitations: append([]string(nil), req.Limitations...),
			Source:      domain.SourceInternal,
		}
		mergeSymbols(s, result.Variables())
		return s.Append(step, true)
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// RecordManual appends an externally derived expression as a trusted step.
func (m *Manager) RecordManual(ctx context.Context, sessionID string, rec ManualRecord) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe(domain.OpManualRecord, err) }()

	parsed, err := expr.ParseText(rec.Expression)
	if err != nil {
		if pe, ok := expr.AsParseError(err); ok {
			m.stats.ParseError(string(pe.Kind))
		}
		return nil, nil, err
	}
	source := rec.Source
	if source == "" {
		source = domain.SourceManual
	}

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		desc := rec.Description
		if desc == "" {
			desc = "Recorded externally derived expression"
		}
		step = &domain.Step{
			Operation:    domain.OpManualRecord,
			Description:  desc,
			Input:        s.Current,
			Output:       parsed.String(),
			Notes:        rec.Notes,
			Assumptions:  append([]string(nil), rec.Assumptions...),
			Limitations:  append([]string(nil), rec.Limitations...),
			Source:       source,
			ExternalTool: rec.ExternalTool,
		}
		mergeSymbols(s, parsed.Variables())
		return s.Append(step, true)
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// AddNote appends a pure annotation. Notes never move the current expression.
func (m *Manager) AddNote(ctx context.Context, sessionID string, note NoteInput) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe(domain.OpNote, err) }()

	step, err = noteStep(note)
	if err != nil {
		return nil, nil, err
	}
	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		return s.Append(step, false)
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// InsertNote inserts an annotation immediately after position pos,
// renumbering every later step.
func (m *Manager) InsertNote(ctx context.Context, sessionID string, pos int, note NoteInput) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe(domain.OpNote, err) }()

	step, err = noteStep(note)
	if err != nil {
		return nil, nil, err
	}
	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		_, serr := s.InsertNoteAfter(pos, step)
		if serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// Step retrieves one step by number.
func (m *Manager) Step(ctx context.Context, sessionID string, n int) (*domain.Step, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	step := sess.Steps.Get(n)
	if step == nil {
		return nil, domain.NewStateError(domain.KindNotFound,
			"step %d does not exist (ledger has %d)", n, len(sess.Steps))
	}
	return step, nil
}

// Steps retrieves the whole ledger.
func (m *Manager) Steps(ctx context.Context, sessionID string) (domain.Ledger, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Steps, nil
}

// UpdateStep applies a free-text metadata patch to step n. Field names
// outside the mutable set are rejected before anything is decoded.
func (m *Manager) UpdateStep(ctx context.Context, sessionID string, n int, fields map[string]any) (sess *domain.Session, step *domain.Step, err error) {
	defer func() { m.observe("update_step", err) }()

	if serr := domain.CheckMutableStepFields(fields); serr != nil {
		return nil, nil, serr
	}
	var patch domain.StepPatch
	dec, derr := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
	})
	if derr != nil {
		return nil, nil, derr
	}
	if derr := dec.Decode(fields); derr != nil {
		return nil, nil, fmt.Errorf("decode step patch: %w", derr)
	}

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		var serr *domain.StateError
		step, serr = s.UpdateStep(n, patch)
		if serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, step, nil
}

// DeleteStep removes the last step. Deleting anything else is rejected.
func (m *Manager) DeleteStep(ctx context.Context, sessionID string, n int) (sess *domain.Session, deleted *domain.Step, err error) {
	defer func() { m.observe("delete_step", err) }()

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		var serr *domain.StateError
		deleted, serr = s.DeleteStep(n)
		if serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, deleted, nil
}

// Rollback discards every step above n. Zero discards the whole ledger.
func (m *Manager) Rollback(ctx context.Context, sessionID string, n int) (report *domain.RollbackReport, err error) {
	defer func() { m.observe("rollback", err) }()

	_, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		var serr *domain.StateError
		report, serr = s.RollbackTo(n)
		if serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Complete freezes the session and archives its result. The session write
// is the commit point; a failed archive is reported but does not reopen
// the session.
func (m *Manager) Complete(ctx context.Context, sessionID string, opts domain.CompleteOptions) (result *domain.Result, err error) {
	defer func() { m.observe("complete", err) }()

	_, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		if serr := s.Complete(); serr != nil {
			return serr
		}
		result = domain.BuildResult(s, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.repo != nil {
		if rerr := m.repo.Store(ctx, result); rerr != nil {
			m.logger.Error("result archive failed; session remains completed",
				"session_id", sessionID,
				"err", rerr,
			)
			return result, &domain.PersistenceError{Err: rerr}
		}
	}
	m.logger.Info("session completed", "session_id", sessionID, "steps", len(result.Steps))
	return result, nil
}

// Abort terminates the session without archiving. Terminal.
func (m *Manager) Abort(ctx context.Context, sessionID string) (sess *domain.Session, err error) {
	defer func() { m.observe("abort", err) }()

	sess, err = m.mutate(ctx, sessionID, func(ctx context.Context, s *domain.Session) error {
		if serr := s.Abort(); serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session aborted", "session_id", sessionID)
	return sess, nil
}

func validateApply(req ApplyRequest) error {
	switch req.Operation {
	case domain.OpSubstitute:
		if req.Target == "" || req.Replacement == "" {
			return domain.NewStateError(domain.KindInvalidTarget,
				"substitute requires a target variable and a replacement expression")
		}
	case domain.OpSolveFor, domain.OpDifferentiate, domain.OpIntegrate:
		if req.Variable == "" {
			return domain.NewStateError(domain.KindInvalidTarget,
				"%s requires a variable", req.Operation)
		}
		if req.Order < 0 {
			return domain.NewStateError(domain.KindInvalidTarget,
				"derivative order must be positive, got %d", req.Order)
		}
	case domain.OpSimplify:
		switch req.Method {
		case "", ports.SimplifyAuto, ports.SimplifyTrig, ports.SimplifyRadical, ports.SimplifyExpandThenReduce:
		default:
			return domain.NewStateError(domain.KindInvalidTarget,
				"unknown simplify method %q", req.Method)
		}
	}
	return nil
}

func describeApply(req ApplyRequest) string {
	switch req.Operation {
	case domain.OpSubstitute:
		return fmt.Sprintf("Substituted %s with %s", req.Target, req.Replacement)
	case domain.OpSimplify:
		method := req.Method
		if method == "" {
			method = ports.SimplifyAuto
		}
		return fmt.Sprintf("Simplified (%s)", method)
	case domain.OpSolveFor:
		return fmt.Sprintf("Solved for %s", req.Variable)
	case domain.OpDifferentiate:
		if req.Order > 1 {
			return fmt.Sprintf("Differentiated with respect to %s (order %d)", req.Variable, req.Order)
		}
		return fmt.Sprintf("Differentiated with respect to %s", req.Variable)
	case domain.OpIntegrate:
		if req.LowerBound != "" || req.UpperBound != "" {
			return fmt.Sprintf("Integrated over %s from %s to %s", req.Variable, req.LowerBound, req.UpperBound)
		}
		return fmt.Sprintf("Integrated over %s", req.Variable)
	}
	return string(req.Operation)
}

func noteStep(note NoteInput) (*domain.Step, error) {
	if strings.TrimSpace(note.Text) == "" {
		return nil, domain.NewStateError(domain.KindInvalidPosition, "a note needs text")
	}
	nt := note.Type
	if nt == "" {
		nt = domain.NoteObservation
	}
	if !domain.ValidNoteType(nt) {
		return nil, domain.NewStateError(domain.KindInvalidPosition,
			"unknown note type %q", note.Type)
	}
	return &domain.Step{
		Operation:      domain.OpNote,
		Description:    fmt.Sprintf("Note (%s)", nt),
		Notes:          note.Text,
		NoteType:       nt,
		RelatedSymbols: append([]string(nil), note.RelatedSymbols...),
		Source:         domain.SourceInternal,
	}, nil
}

// mergeSymbols folds newly seen variables into the session symbol table.
// Metadata recorded earlier wins over inferred defaults.
func mergeSymbols(s *domain.Session, vars map[string]expr.Variable) {
	if s.Symbols == nil {
		s.Symbols = make(map[string]expr.Variable, len(vars))
	}
	for name, v := range vars {
		existing, ok := s.Symbols[name]
		if !ok {
			s.Symbols[name] = v
			continue
		}
		if existing.Description == "" {
			existing.Description = v.Description
		}
		if existing.Unit == "" {
			existing.Unit = v.Unit
		}
		if existing.Value == nil && v.Value != nil {
			existing.Value = v.Value
		}
		s.Symbols[name] = existing
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

// recordName surfaces the name declared inside a structured record.
func recordName(in expr.Input) (string, error) {
	if in.Record == nil {
		return "", nil
	}
	rec, err := expr.DecodeRecord(in.Record)
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}
