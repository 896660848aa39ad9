package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Beat describes a stored beat in a transport-friendly format.
type Beat struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	SizeBytes   int64  `json:"sizeBytes"`
	ContentType string `json:"contentType,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	DownloadURL string `json:"downloadUrl"`
	PreviewURL  string `json:"previewUrl"`
}

// Category summarizes a category for listings.
type Category struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Beats int    `json:"beats"`
}

// CategoryListResponse is returned by GET /api/categories.
type CategoryListResponse struct {
	Categories []Category `json:"categories"`
}

// BeatListResponse is returned by GET /api/categories/{category}/beats.
type BeatListResponse struct {
	Category string `json:"category"`
	Beats    []Beat `json:"beats"`
}

// UploadResponse is returned for accepted uploads.
type UploadResponse struct {
	Reason string `json:"reason"`
	Beat   Beat   `json:"beat"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// DependencyStatus reports the availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight result.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	StorageBackend string             `json:"storageBackend"`
	Categories     []string           `json:"categories"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Checks         []CheckResult      `json:"checks"`
}
