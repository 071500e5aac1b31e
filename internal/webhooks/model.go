package webhooks

import "time"

// Event types dispatched by ledgerd.
const (
	EventIntegrityFailed = "ledger.integrity_failed"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Recordchain-Signature"

// Event is the JSON body POSTed to every endpoint.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}
