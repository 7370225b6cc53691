// Package google turns caller-supplied OAuth credentials into authenticated
// HTTP clients for Google APIs.
//
// Credentials arrive with every tool call. Nothing is stored on disk: an
// access token is used as-is, and when a refresh token plus client ID and
// secret are present the token source refreshes expired access tokens
// transparently.
//
// Clients returned by HTTPClient force HTTP/1.1 to avoid HTTP/2 protocol
// errors on the batch endpoint.
package google
