// Package compiler turns CUE rule definitions into artifact rules and option
// labels the engine can store.
//
// A rule file looks like:
//
//	rule: "kyc-passport": {
//		name:                "Passport"
//		artifact_type:       "identity"
//		related_record:      "account"
//		condition_attribute: "verified"
//		success_indicator:   "false"
//		specifier:           "name"
//	}
//
//	labels: incident: priority: {
//		"1": "Low"
//		"2": "High"
//	}
//
// The CUE SDK is used directly; there is no cue CLI subprocess.
package compiler
