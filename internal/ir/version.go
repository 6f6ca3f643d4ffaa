package ir

// Version constants for the recorded frame schema and the engine.
const (
	// FrameVersion is the recorded frame schema version.
	FrameVersion = "1"

	// EngineVersion is the sweeptrace engine version.
	EngineVersion = "0.1.0"
)
