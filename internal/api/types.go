package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ServiceName is reported by the banner endpoint.
const ServiceName = "scribe transcription service"

// Job describes a transcription job in a transport-friendly format.
type Job struct {
	ID                   int64    `json:"id"`
	Status               string   `json:"status"`
	LanguageHint         string   `json:"language_hint,omitempty"`
	OriginalFilename     string   `json:"original_filename,omitempty"`
	SizeBytes            int64    `json:"size_bytes,omitempty"`
	Text                 *string  `json:"text,omitempty"`
	DetectedLanguage     *string  `json:"detected_language,omitempty"`
	AudioDurationSeconds *float64 `json:"audio_duration_seconds,omitempty"`
	ErrorMessage         *string  `json:"error_message,omitempty"`
	CreatedAt            string   `json:"created_at"`
	CompletedAt          string   `json:"completed_at,omitempty"`
}

// SubmitResponse acknowledges an accepted upload.
type SubmitResponse struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running   bool   `json:"running"`
	Workers   int    `json:"workers"`
	Busy      int    `json:"busy"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	LastJobID int64  `json:"last_job_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Health aggregates runtime information for the health endpoint.
type Health struct {
	Status               string             `json:"status"`
	ActiveTranscriptions int                `json:"active_transcriptions"`
	Total                int                `json:"total"`
	Counts               map[string]int     `json:"counts"`
	Workflow             WorkflowStatus     `json:"workflow"`
	Dependencies         []DependencyStatus `json:"dependencies,omitempty"`
}

// ServiceInfo is the banner returned from the root path.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
