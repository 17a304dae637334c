package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace bool // stored with the config; Machine does not log CPU instructions
	// ClockSpeedScale multiplies the T-cycles StepFrame runs per call
	// (70224, one DMG frame, at 1.0); 1.0 is real-time.
	ClockSpeedScale float64
	LimitFPS        bool // stored with the config; Machine does not throttle, pacing is left to the host
}
