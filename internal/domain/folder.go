package domain

// FolderRequest asks the backend to materialize a work folder.
type FolderRequest struct {
	MailID              string       `json:"mail_id"`
	Subject             string       `json:"subject"`
	Date                string       `json:"date"`
	FromAddr            string       `json:"from_addr"`
	Body                string       `json:"body"`
	BasePath            string       `json:"base_path"`
	FolderName          string       `json:"folder_name"`
	UseSubFolder        bool         `json:"use_sub_folder"`
	SubFolderName       string       `json:"sub_folder_name"`
	SaveMailContent     bool         `json:"save_mail_content"`
	MailContentFileName string       `json:"mail_content_file_name"`
	SaveFormats         []string     `json:"save_formats"`
	RawContent          string       `json:"raw_content"`
	Attachments         []Attachment `json:"attachments"`
	Department          string       `json:"department"`
	Source              string       `json:"source"`
	Hash                string       `json:"hash"`
}

// FolderResult describes a created work folder.
type FolderResult struct {
	Path                  string   `json:"path"`
	ContentPath           string   `json:"content_path"`
	MailFiles             []string `json:"mail_files"`
	WorkRecord            string   `json:"work_record"`
	Message               string   `json:"message"`
	AttachmentsDownloaded []string `json:"attachments_downloaded,omitempty"`
}

// CheckHashRequest asks whether a fingerprint already has a folder.
type CheckHashRequest struct {
	Hash         string   `json:"hash"`
	ScanPath     string   `json:"scan_path"`
	ArchivePaths []string `json:"archive_paths"`
}

// WorkRecordUpdate rewrites a folder's work record.
type WorkRecordUpdate struct {
	FolderPath string `json:"folder_path"`
	Department string `json:"department"`
	Content    string `json:"content"`
}
