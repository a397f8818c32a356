// Package sessionstate owns the client-side view of "who is logged in".
//
// A [Coordinator] holds the canonical in-memory session (profile, derived
// kind, token) and mirrors it into two non-authoritative sinks: a cookie
// mirror with a 21-day TTL and a local-storage mirror without one. Writes
// go through to the mirrors on every mutation; reads prefer memory, then
// the cookie, then local storage, never the reverse.
//
// All mutations funnel through a single per-coordinator mutation lock, so a
// profile write from an in-flight hydration cannot overwrite a newer
// explicit login.
package sessionstate
