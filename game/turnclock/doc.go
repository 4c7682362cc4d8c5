// Package turnclock runs one cancellable deadline per session.
//
// Each Arm call replaces the pending deadline of a session and returns a
// generation number. When the deadline fires, the callback receives that
// generation and must Claim it before acting. Claim succeeds only if the
// deadline is still the current one, so a callback that lost a race against
// a move (which cancels or re-arms the deadline) turns into a no-op. A
// callback that cannot act yet calls Retry to fire again for the same
// generation.
package turnclock
