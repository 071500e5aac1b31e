// Package identity issues and verifies the bearer tokens that authorise
// uploads when the server is configured with a signing secret.
package identity
