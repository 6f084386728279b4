// Package backend is the HTTP client for the evault API.
//
// A Client owns one cookie jar and one credential store and therefore
// represents one session lifecycle. All calls pass through
// session.GuardTransport, so a 440 response surfaces as
// session.ErrSessionExpired after the lifecycle's re-authentication has been
// triggered.
package backend
