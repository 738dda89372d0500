package domain

// FolderStatus reports where a generated folder currently lives.
type FolderStatus string

const (
	StatusNone     FolderStatus = ""
	StatusWorking  FolderStatus = "working"
	StatusArchived FolderStatus = "archived"
)

// Work record sources.
const (
	SourceMail  = "邮件"
	SourceQuick = "快速创建"
)

// WorkFolder is a directory carrying a work record marker file.
type WorkFolder struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	Modified      string `json:"modified"`
	HasWorkRecord bool   `json:"has_work_record"`
	Department    string `json:"department"`
	CreateTime    string `json:"create_time"`
	Source        string `json:"source"`
	Content       string `json:"content"`
	Hash          string `json:"hash"`
	FileCount     int    `json:"file_count"`
}

// MoveItem is a single archive request.
type MoveItem struct {
	FolderPath  string `json:"folder_path"`
	ArchivePath string `json:"archive_path"`
}

// MoveResult is the outcome of one archive move.
type MoveResult struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
}

// BatchResult aggregates per-item move results. SuccessCount+FailCount
// always equals Total.
type BatchResult struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailCount    int          `json:"fail_count"`
	Results      []MoveResult `json:"results"`
}

// Add appends r and updates the counters.
func (b *BatchResult) Add(r MoveResult) {
	b.Total++
	if r.Success {
		b.SuccessCount++
	} else {
		b.FailCount++
	}
	b.Results = append(b.Results, r)
}

// HashMatch is an existing folder carrying a searched fingerprint.
type HashMatch struct {
	Name   string       `json:"name"`
	Path   string       `json:"path"`
	Status FolderStatus `json:"status"`
}

type CheckResult struct {
	Found   bool        `json:"found"`
	Matches []HashMatch `json:"matches"`
}
