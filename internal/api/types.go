package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ResolverStatus summarizes the resolution state machine.
type ResolverStatus struct {
	State          string `json:"state"`
	TagID          string `json:"tagId,omitempty"`
	CorrelationID  string `json:"correlationId,omitempty"`
	CardType       string `json:"cardType,omitempty"`
	CurrentTrack   int    `json:"currentTrack"`
	TrackCount     int    `json:"trackCount"`
	StartedAt      string `json:"startedAt,omitempty"`
	LastTagID      string `json:"lastTagId,omitempty"`
	LastOutcome    string `json:"lastOutcome,omitempty"`
	LastError      string `json:"lastError,omitempty"`
	LastFinishedAt string `json:"lastFinishedAt,omitempty"`
	Resolved       int64  `json:"resolved"`
	Failed         int64  `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	StartedAt        string         `json:"startedAt,omitempty"`
	LockFilePath     string         `json:"lockFilePath"`
	StoreBackend     string         `json:"storeBackend"`
	DatabasePath     string         `json:"databasePath,omitempty"`
	StagingDir       string         `json:"stagingDir"`
	StagingFreeBytes uint64         `json:"stagingFreeBytes"`
	QueueLength      int            `json:"queueLength"`
	QueueCapacity    int            `json:"queueCapacity"`
	AgentURL         string         `json:"agentUrl,omitempty"`
	Resolver         ResolverStatus `json:"resolver"`
}

// Assignment describes a stored tag assignment.
type Assignment struct {
	TagID     string `json:"tagId"`
	Value     string `json:"value"`
	Kind      string `json:"kind"`
	Path      string `json:"path,omitempty"`
	Mode      int    `json:"mode"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Malformed bool   `json:"malformed,omitempty"`
}

// AssignmentListResponse wraps a collection of assignments.
type AssignmentListResponse struct {
	Items []Assignment `json:"items"`
}

// AssignmentResponse wraps a single assignment lookup.
type AssignmentResponse struct {
	Found bool       `json:"found"`
	Item  Assignment `json:"item"`
}

// AssignmentRemoveResponse reports a delete.
type AssignmentRemoveResponse struct {
	Removed bool `json:"removed"`
}

// TagRequest injects a scanned tag into the daemon queue.
type TagRequest struct {
	UID    string `json:"uid"`
	Source string `json:"source,omitempty"`
}

// TagResponse reports the normalized tag and queue state.
type TagResponse struct {
	TagID       string `json:"tagId"`
	Queued      bool   `json:"queued"`
	QueueLength int    `json:"queueLength"`
}

// NotifyResponse reports the result of a test notification.
type NotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ErrorResponse is returned for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
