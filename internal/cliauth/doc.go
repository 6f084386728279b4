// Package cliauth implements sign-in for the terminal.
//
// The terminal cannot receive the identity provider's redirect itself.
// Instead it starts a sign-in with the cli device type, opens the browser
// on the returned URL and polls the backend until the web front has
// completed the handshake for the same session id. The resulting access
// token is kept in a TokenStore under ~/.config/evault/tokens.
package cliauth
