/*
Package ports defines the driven ports (interfaces) for the derivation
engine.

These interfaces decouple the session core from external implementations,
allowing the engine to work with various storage backends, computation
capabilities, and lock providers.

# Key Interfaces

  - SessionStore: Responsible for persisting and loading derivation sessions.
  - Computer: Performs symbolic computation on canonical expressions.
  - ResultRepository: Archives completed derivation results.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
