package ir

// EngineVersion is the artifact engine version, reported by the CLI and
// the HTTP health endpoint.
const EngineVersion = "0.1.0"
