package pulse

import "time"

// FetchState is the lifecycle state of one stream's fetch pipeline.
type FetchState string

// Fetch-status lifecycle. A stream returns to idle only when the next
// trigger starts it again; terminal states stay observable until then.
const (
	FetchIdle    FetchState = "idle"
	FetchRunning FetchState = "running"
	FetchSuccess FetchState = "success"
	FetchError   FetchState = "error"
)

// maxErrorLen bounds the stored error message per stream.
const maxErrorLen = 500

// FetchStatus is the per-stream snapshot mutated only by the refresh
// coordinator and read by the status endpoints.
type FetchStatus struct {
	Status          FetchState `json:"status"`
	LastStart       *time.Time `json:"last_start,omitempty"`
	LastFinish      *time.Time `json:"last_finish,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	RecordsIngested int        `json:"records_ingested"`
}

// TruncateError bounds an error message to the stored limit.
func TruncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	return msg[:maxErrorLen]
}

// RefreshState is the coordinator snapshot returned by the status
// endpoints. Running is true iff at least one stream is running.
type RefreshState struct {
	Running bool        `json:"running"`
	Papers  FetchStatus `json:"papers"`
	Jobs    FetchStatus `json:"jobs"`
	News    FetchStatus `json:"news"`
}
