package domain

// MailItem is one row of the backend mail list.
type MailItem struct {
	ID              string `json:"id"`
	Subject         string `json:"subject"`
	From            string `json:"from"`
	Date            string `json:"date"`
	AttachmentCount int    `json:"attachment_count"`
	HasAttachments  bool   `json:"has_attachments"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// MailDetail is the decoded content of a single message.
type MailDetail struct {
	Body        string       `json:"body"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments"`
	RawContent  string       `json:"raw_content"`
}

// MailConnection holds the parameters for a backend mail login.
type MailConnection struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseSSL   bool   `json:"use_ssl"`
}
