// Package ledger owns the in-memory chain of file-digest blocks and keeps it
// in step with its durable snapshot.
//
// A Ledger is created once per process, initialised from its Store (loading
// an existing snapshot or writing a fresh genesis block), and then only grows
// through Append. Appends are serialised; each one persists the candidate
// chain before it becomes visible in memory, so the snapshot and the
// in-memory chain never diverge.
package ledger
