/*
Package derivekit is a state machine for symbolic derivation sessions: an
append-only ledger of derivation steps with a single authoritative current
expression, a multi-format formula codec, and a durable archive for
finished results.

It separates the derivation state (Session) from the computation backend
(Computer) and the persistence layer (SessionStore). This hexagonal
architecture lets the engine be embedded in any interface: CLI, HTTP
server, or AI agent infrastructure over MCP.

# Concept

A session is a numbered sequence of steps. Every operation either advances
the current expression (load, substitute, simplify, solve, differentiate,
integrate, manual record) or annotates the trail (notes). Steps commit
atomically: the mutation is persisted before it is acknowledged, so a
restarted process resumes exactly where the ledger says it stopped. When a
derivation completes, its result is archived with searchable metadata
while the expression and step trail become immutable.

# Formula Formats

The expr package accepts three notations and reduces them to one canonical
form:

  - linear:  C_0 * exp(-k*t)
  - typeset: C_{0} e^{-kt}
  - record:  a structured map with per-variable units and constraints

Equivalent inputs in different notations parse to structurally equal trees.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/derivekit/derivekit"
		"github.com/derivekit/derivekit/pkg/domain"
		"github.com/derivekit/derivekit/pkg/expr"
		"github.com/derivekit/derivekit/pkg/session"
	)

	func main() {
		mgr, err := derivekit.New(".derivekit")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		scope := mgr.NewScope()

		sess, err := scope.Start(ctx, "first-order decay", "")
		if err != nil {
			log.Fatal(err)
		}
		log.Println("session:", sess.ID)

		_, _, err = scope.LoadFormula(ctx, session.FormulaInput{
			Input: expr.Input{Text: "C_0 * exp(-k*t)"},
			Name:  "decay law",
		})
		if err != nil {
			log.Fatal(err)
		}

		result, err := scope.Complete(ctx, domain.CompleteOptions{})
		if err != nil {
			log.Fatal(err)
		}
		log.Println("archived:", result.ID)
	}
*/
package derivekit
