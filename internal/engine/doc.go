// Package engine implements the artifact rules engine.
//
// For one triggering change to one target record (a case, an account, a
// contact or a configured child record) the engine decides which artifact
// records must exist, what they carry, and which must go.
//
// ARCHITECTURE:
//
// Components, leaves first:
//   - RuleRepository: rules applicable to a record type (rules.go)
//   - IdentityResolver: account/contact/case ids for the target, one resolver
//     per record-type variant (identity.go)
//   - AssociationResolver: the association display string of a rule for the
//     target (association.go)
//   - Evaluator: observes a condition attribute and matches it against a
//     rule's success indicator (evaluator.go)
//   - Reconciliation: builds a Plan without writing, then applies it
//     (plan.go, reconcile.go)
//
// Event Processing Flow:
//  1. OnRecordCreated / OnRecordChanged receive a Trigger
//  2. The identity variant for the record type checks its lookup
//     configuration; a generic type without both lookup names is a no-op
//  3. The target record, its identity, its rules and its existing artifacts
//     are loaded into an evaluation context
//  4. planCreate / planUpdate decide creates, association updates and
//     deletions without touching the store
//  5. apply executes creates one by one, then one continue-on-error update
//     batch, then one continue-on-error delete batch
//
// Execution is synchronous and request-scoped: nothing is cached between
// invocations and the engine never starts goroutines. Any failure while
// loading or applying aborts the invocation with an *ExecutionError; work
// already applied is not rolled back.
package engine
