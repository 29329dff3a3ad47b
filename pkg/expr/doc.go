// Package expr is the expression codec: it parses heterogeneous formula
// input (linear notation, typeset markup, or a structured record) into a
// canonical immutable AST plus free-variable metadata.
//
// Parsing never panics and never returns an untyped failure: every error
// is a *ParseError carrying a kind from a closed set, so batch callers can
// inspect it and continue past one bad formula. Format detection is
// deterministic and side-effect-free; parsing the same input twice yields
// structurally equal results.
package expr
