// Package session implements the client side of the evault sign-in
// handshake.
//
// A sign-in starts with an Initiator, which asks the backend for the
// identity provider URL and navigates there. The provider redirects back to
// the callback route with session_id, code, state and device_type; a
// CallbackHandler validates those (ParseCallbackParams), trades them for a
// session credential through an Exchanger exactly once, and then navigates
// to the dashboard for the web device type or stays put for the cli device
// type.
//
// Every API call made afterwards goes through a GuardTransport. A response
// with status 440 is never handed to the caller: the guard marks the
// credential lapsed and the lifecycle's Effects executor sends the user back
// to the entry route, once.
//
// IdentityCache shares the "who am I" lookup between every consumer of a
// lifecycle.
//
// Navigation is abstracted behind Navigator so the same logic drives an
// HTTP redirect in the web front and a browser launch in the terminal.
package session
