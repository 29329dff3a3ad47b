package expr

import (
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Record is the decoded structured-record form of a formula: an inner
// expression in text notation plus per-variable metadata.
type Record struct {
	Expression  string               `mapstructure:"expression"`
	Format      Format               `mapstructure:"format"`
	Name        string               `mapstructure:"name"`
	Description string               `mapstructure:"description"`
	Variables   map[string]RecordVar `mapstructure:"variables"`
}

// RecordVar is the metadata block for one variable inside a record.
type RecordVar struct {
	Description string     `mapstructure:"description"`
	Unit        string     `mapstructure:"unit"`
	Constraint  Constraint `mapstructure:"constraint"`
	Value       *float64   `mapstructure:"value"`
}

// DecodeRecord validates and decodes the raw key/value form.
func DecodeRecord(raw map[string]any) (Record, *ParseError) {
	var rec Record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Record{}, newParseError(KindMalformedSyntax, -1, "", "decode record: %v", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Record{}, newParseError(KindMalformedSyntax, -1, "", "decode record: %v", err)
	}
	if rec.Expression == "" {
		return Record{}, newParseError(KindMalformedSyntax, -1, "",
			`record is missing the "expression" field`)
	}
	if rec.Format == "" {
		rec.Format = FormatAuto
	}
	if !ValidFormat(rec.Format) || rec.Format == FormatRecord {
		return Record{}, newParseError(KindMalformedSyntax, -1, rec.Expression,
			"record declares invalid inner format %q", string(rec.Format))
	}
	return rec, nil
}

// parseRecord decodes a record, parses its inner expression, and applies
// the declared variable metadata onto the result.
func parseRecord(raw map[string]any) (*Expression, error) {
	rec, perr := DecodeRecord(raw)
	if perr != nil {
		return nil, perr
	}
	inner, err := ParseAs(Input{Text: rec.Expression}, rec.Format)
	if err != nil {
		return nil, err
	}
	e := &Expression{root: inner.root, original: rec.Expression, format: FormatRecord, vars: inner.vars}

	// Deterministic application order so the first error reported is stable.
	names := make([]string, 0, len(rec.Variables))
	for name := range rec.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		meta := rec.Variables[name]
		cur, ok := e.Var(name)
		if !ok {
			return nil, newParseError(KindUnknownVariableRef, -1, rec.Expression,
				"variable %q does not appear in the expression", name)
		}
		if meta.Constraint != "" {
			if !ValidConstraint(meta.Constraint) {
				return nil, newParseError(KindAmbiguousDimension, -1, rec.Expression,
					"variable %q has unknown constraint %q", name, string(meta.Constraint))
			}
			cur.Constraint = meta.Constraint
		}
		if meta.Description != "" {
			cur.Description = meta.Description
		}
		if meta.Unit != "" {
			cur.Unit = meta.Unit
		}
		if meta.Value != nil {
			v := *meta.Value
			cur.Value = &v
		}
		e = e.withVariable(cur)
	}
	return e, nil
}
