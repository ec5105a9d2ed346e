// Package audit implements the audit trail for command generation.
//
// Every conversation step (session start, identifier accepted or rejected,
// commands generated, cancellation, expiry) and every one-shot derivation is
// appended as one JSON line to audit.jsonl. The file is rotated by size.
package audit
