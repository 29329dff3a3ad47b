/*
Package session implements the derivation engine: it serializes access to
sessions, delegates symbolic computation to a Computer port, and keeps the
step ledger consistent with the persisted state.

Every mutation follows the same commit discipline: the stored session is
loaded, a deep clone is mutated, the clone is persisted, and only then is
it returned to the caller. A failed write therefore never leaves a session
half-mutated, and a crash between operations loses at most the operation
that was never acknowledged.

The Manager serializes concurrent operations per session ID with
reference-counted locks (plus an optional distributed locker for
multi-replica deployments). A Scope layers the caller-facing binding rules
on top: one session per scope, one scope per session.
*/
package session
