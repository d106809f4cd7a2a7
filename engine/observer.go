package engine

// Observer receives run progress from the orchestrator. Both methods are
// called synchronously from the engine's single worker; a presentation layer
// that needs its own execution context must marshal the calls itself.
type Observer interface {
	// Progress reports overall completion, 0-100, monotonically non-decreasing
	// within a run.
	Progress(pct int)

	// Status reports a human-readable status line.
	Status(msg string)
}

// NopObserver discards all updates.
type NopObserver struct{}

func (NopObserver) Progress(int)   {}
func (NopObserver) Status(string)  {}
