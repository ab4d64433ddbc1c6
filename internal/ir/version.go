package ir

// Version constants for the log schema and the revert engine.
const (
	// PayloadVersion is the ChangeEvent payload format version.
	PayloadVersion = "1"

	// EngineVersion is the casetrail engine version.
	EngineVersion = "0.1.0"
)
