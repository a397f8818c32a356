// Package authcore implements the authentication core of a campus attendance
// tracker: one-time-passcode (OTP) challenge issuance and verification backed
// by Redis, stateless signed session tokens, and account resolution by
// contact identifier (email or phone).
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Principal, AuthResult, MetricsSnapshot). Challenge storage
// is an implementation detail: the Redis layout and record encoding are never
// part of the public API. Account and profile persistence live behind the
// [AccountDirectory] and [ProfileResolver] interfaces and are provided by the
// caller (see the directory subpackage for a pgx-backed implementation).
//
// # Concurrency contract
//
// Challenge issuance and verification are atomic per contact identifier.
// Two concurrent verifications of the same challenge cannot both succeed:
// exactly one observes the challenge and deletes it, the other fails with
// [ErrChallengeInvalid].
package authcore
