package ir

// Version constants for record schema and engine.
const (
	// IRVersion is the record schema version.
	IRVersion = "1"

	// EngineVersion is the vault engine version.
	EngineVersion = "0.1.0"
)
