// Package queryir provides the predicate representation the engine uses to
// ask the record store for records.
//
// The engine only ever needs a handful of shapes:
//
//	rules for a role:         Select{Type: artifactrule, Filter: And{Equals, IsNull}}
//	artifacts of a target:    Select{Type: artifact, Filter: RefEquals{lookup, id}}
//	earliest case of a party: Select{Type: incident, Filter: RefEquals, OrderBy: created_on, Limit: 1}
//
// Keeping these as data instead of SQL strings lets the engine stay
// independent of the store backend (see internal/querysql for SQLite) and
// lets tests assert on the exact query the engine issued.
//
// Ordering is always deterministic: backends append the record id as a
// final tiebreaker to whatever OrderBy requests.
package queryir
