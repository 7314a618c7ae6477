// Package harness runs artifact reconciliation scenarios against a fresh
// in-memory store and the real engine and hooks.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: priority_rule_toggles
//	description: "A conditional rule follows the case priority"
//	config:
//	  bindings:
//	    expense: { case_lookup: caseref, artifact_lookup: expenseid }
//	rules:
//	  - id: r-memo
//	    name: Memo
//	    parent_record: incident
//	    condition_attribute: priority
//	    success_indicator: "2"
//	labels:
//	  - { record_type: incident, attribute: priority, code: 2, label: High }
//	records:
//	  - type: incident
//	    id: case-1
//	    attributes:
//	      title: Water damage
//	      priority: { option: 2 }
//	      customerid: { ref: { type: account, id: acct-1 } }
//	steps:
//	  - event: created
//	    record_type: incident
//	    record_id: case-1
//	  - event: changed
//	    record_type: incident
//	    record_id: case-1
//	    changed: { priority: { option: 1 } }
//	assertions:
//	  - type: no_artifact
//	    rule: r-memo
//	    lookup: caseid
//	    target: case-1
//
// Attribute values are written as plain scalars (string = text,
// integer = int, bool) or as a single-key tagged map: option, ref, text,
// int, bool. null clears an attribute.
//
// # Steps
//
//   - created: the record exists; reconcile as a creation
//   - changed: apply changed to the stored record, then reconcile the delta
//   - deleting: cascade artifact cleanup, then delete the record
//   - annotated: run the upload check for annotation_id
//
// A step that is expected to fail names the error code in expect_error.
//
// # Assertion Types
//
//   - artifact_count: number of artifacts whose lookup references target
//   - artifact: exactly one artifact for rule and target, with expect as a
//     subset of its attributes
//   - no_artifact: no artifact for rule and target
//   - record: expect is a subset of the attributes of record_type/record_id
//
// # Deterministic Testing
//
// Every run uses testutil.DeterministicClock and a sequential artifact id
// generator, so the trace and final artifacts can be compared against
// golden files byte for byte.
package harness
