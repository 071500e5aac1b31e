// Package handler serves the ledger over HTTP with Gin: uploads and chain
// inspection, plus the middleware ledgerd mounts in front of them.
package handler
