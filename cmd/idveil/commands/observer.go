package commands

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pterm/pterm"
)

// cliObserver renders engine callbacks as a terminal progress bar with
// status lines above it.
type cliObserver struct {
	bar  *pterm.ProgressbarPrinter
	last int
}

func newCLIObserver() *cliObserver {
	bar, _ := pterm.DefaultProgressbar.
		WithTotal(100).
		WithTitle("Anonymizing").
		Start()
	return &cliObserver{bar: bar}
}

func (o *cliObserver) Progress(pct int) {
	if pct > o.last {
		o.bar.Add(pct - o.last)
		o.last = pct
	}
}

func (o *cliObserver) Status(msg string) {
	pterm.Info.Println(msg)
}

func (o *cliObserver) Close() {
	if o.bar != nil {
		o.bar.Stop()
	}
}

// progressEvent is one structured event on stdout when --json is set.
type progressEvent struct {
	Type      string    `json:"type"` // "progress" or "status"
	Timestamp time.Time `json:"timestamp"`
	Percent   int       `json:"percent,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// jsonObserver emits engine callbacks as JSON lines for machine consumption.
type jsonObserver struct {
	encoder *json.Encoder
}

func newJSONObserver() *jsonObserver {
	return &jsonObserver{encoder: json.NewEncoder(os.Stdout)}
}

func (o *jsonObserver) Progress(pct int) {
	o.encoder.Encode(progressEvent{Type: "progress", Timestamp: time.Now(), Percent: pct})
}

func (o *jsonObserver) Status(msg string) {
	o.encoder.Encode(progressEvent{Type: "status", Timestamp: time.Now(), Message: msg})
}

func (o *jsonObserver) Close() {}
