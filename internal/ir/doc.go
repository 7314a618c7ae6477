// Package ir provides the typed record representation shared by every other
// package: attribute values, records, artifact rules and artifacts.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed; attribute access goes through typed accessors that
//     fail with ErrTypeMismatch instead of runtime type tests at call sites
//   - Absent and Null are the same for reads; a delta keeps explicit Null
//   - Stored encodings are canonical (sorted keys, NFC text)
package ir
