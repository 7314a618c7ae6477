// Package hooks holds the record lifecycle handlers that sit next to the
// reconciliation engine: cascading artifact cleanup when a parent record is
// deleted, and upload bookkeeping when a note is attached to an artifact.
package hooks
