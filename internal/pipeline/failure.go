package pipeline

import (
	"fmt"
	"strings"

	"receipttracker/internal/engine"
)

// Attempt is one entry in a request's failure trail. Invoked distinguishes
// a recognition call that failed from a candidate that was skipped because
// its probe reported it unavailable.
type Attempt struct {
	EngineID string             `json:"engine"`
	Kind     engine.FailureKind `json:"kind"`
	Detail   string             `json:"detail,omitempty"`
	Invoked  bool               `json:"invoked"`
}

// PipelineFailure is returned only when no backend ever produced text:
// every candidate was unavailable, transport-failed, or the request was
// cancelled. It carries the ordered attempt trail, never a bare string.
type PipelineFailure struct {
	Attempts  []Attempt `json:"attempts"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

func (f *PipelineFailure) Error() string {
	if f.Cancelled {
		return "pipeline cancelled"
	}
	parts := make([]string, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.EngineID, a.Kind))
	}
	if len(parts) == 0 {
		return "no engines configured"
	}
	return "all engines failed: " + strings.Join(parts, "; ")
}
