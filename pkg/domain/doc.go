// Package domain contains the core types of the derivation engine:
// sessions, the step ledger, archival results, and the typed errors
// every operation returns.
//
// Types here are plain data plus the pure ledger rules (dense numbering,
// current-expression consistency). Locking, persistence, and transport
// concerns live in pkg/session and the adapters.
package domain
