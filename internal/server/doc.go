// Package server runs the short-lived local HTTP listener that receives the
// Spotify OAuth2 authorization callback.
//
// The flow is one-shot: the auth command opens the authorization URL in a
// browser, the listener waits for a single /callback hit, exchanges the code
// for tokens, delivers the result over a channel, and shuts down.
package server
