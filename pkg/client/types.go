package client

// SearchRequest mirrors the POST /api/v1/search body.
type SearchRequest struct {
	Query          string   `json:"query"`
	CourseID       string   `json:"course_id"`
	ItemTypes      []string `json:"item_types,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	SpecificDates  []string `json:"specific_dates,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Generality     string   `json:"generality,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	IncludeRelated bool     `json:"include_related,omitempty"`
}

// Document is a search hit as the API returns it. Fields are populated
// per document type; absent fields are omitted from the wire format.
type Document struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	CourseID string `json:"course_id,omitempty"`
	ModuleID string `json:"module_id,omitempty"`

	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Filename    string `json:"filename,omitempty"`

	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	Body        string `json:"body,omitempty"`
	Content     string `json:"content,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	DueAt     string `json:"due_at,omitempty"`
	PostedAt  string `json:"posted_at,omitempty"`
	StartAt   string `json:"start_at,omitempty"`
	EndAt     string `json:"end_at,omitempty"`

	URL             string   `json:"url,omitempty"`
	Size            int64    `json:"size,omitempty"`
	Locked          bool     `json:"locked,omitempty"`
	LockedForUser   bool     `json:"locked_for_user,omitempty"`
	LockExplanation string   `json:"lock_explanation,omitempty"`
	SubmissionTypes []string `json:"submission_types,omitempty"`
	CanSubmit       bool     `json:"can_submit,omitempty"`
	PointsPossible  float64  `json:"points_possible,omitempty"`
	TimeLimit       int      `json:"time_limit,omitempty"`
	AllowedAttempts int      `json:"allowed_attempts,omitempty"`
	QuizType        string   `json:"quiz_type,omitempty"`
	LocationName    string   `json:"location_name,omitempty"`
	LocationAddress string   `json:"location_address,omitempty"`
	ContextCode     string   `json:"context_code,omitempty"`
	ModuleName      string   `json:"module_name,omitempty"`

	RelatedDocs []string `json:"related_docs,omitempty"`

	CourseName   string `json:"course_name,omitempty"`
	CourseCode   string `json:"course_code,omitempty"`
	LocalTime    string `json:"local_time,omitempty"`
	RelativeTime string `json:"relative_time,omitempty"`
}

// SearchResult is one ranked hit with its match provenance ("semantic",
// "lexical", "hybrid", "related", or the document type for keyword hits).
type SearchResult struct {
	Document *Document `json:"document"`
	Match    string    `json:"match"`
}

// SearchResponse is the POST /api/v1/search response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// SyncReport summarizes an index synchronization run.
type SyncReport struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
	Degraded int `json:"degraded"`
}

// Course is a course known to the snapshot.
type Course struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code,omitempty"`
}

// CoursesResponse is the GET /api/v1/courses response.
type CoursesResponse struct {
	Courses []Course `json:"courses"`
	Count   int      `json:"count"`
}

// HealthReport is the GET /healthz response.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every component check passed.
func (h HealthReport) Healthy() bool { return h.Status == "ok" }
