package ir

// Version constants for the value schema and engine.
const (
	// IRVersion is the value schema version.
	IRVersion = "1"

	// EngineVersion is the vellum engine version.
	EngineVersion = "0.1.0"
)
