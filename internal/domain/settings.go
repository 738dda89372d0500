package domain

// WindowStyle selects the desktop shell layout. Only persisted here.
type WindowStyle string

const (
	WindowIntegrated WindowStyle = "integrated"
	WindowClassic    WindowStyle = "classic"
)

// Save formats accepted for mail content.
const (
	FormatTXT = "txt"
	FormatEML = "eml"
	FormatPDF = "pdf"
)

// Department is a named archive destination.
type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ArchivePath string `json:"archivePath"`
}

// Settings is the persisted user configuration record.
type Settings struct {
	WindowStyle         WindowStyle `json:"windowStyle"`
	FolderPath          string      `json:"folderPath"`
	ScanPath            string      `json:"scanPath"`
	FolderNameFormat    string      `json:"folderNameFormat"`
	UseSubFolder        bool        `json:"useSubFolder"`
	SubFolderName       string      `json:"subFolderName"`
	SaveMailContent     bool        `json:"saveMailContent"`
	MailContentFileName string      `json:"mailContentFileName"`
	SaveFormats         []string    `json:"saveFormats"`

	MailServer            string  `json:"mailServer"`
	MailPort              int     `json:"mailPort"`
	MailUsername          string  `json:"mailUsername"`
	MailPasswordEncrypted *string `json:"mailPasswordEncrypted"`
	MailUseSSL            bool    `json:"mailUseSsl"`
	MailLimit             int     `json:"mailLimit"`
	MailDays              int     `json:"mailDays"`

	Departments         []Department `json:"departments"`
	DefaultDepartmentID *string      `json:"defaultDepartmentId"`
}

// Clone returns a deep copy so callers can't mutate shared state.
func (s Settings) Clone() Settings {
	out := s
	out.SaveFormats = append([]string(nil), s.SaveFormats...)
	out.Departments = append([]Department(nil), s.Departments...)
	if s.MailPasswordEncrypted != nil {
		v := *s.MailPasswordEncrypted
		out.MailPasswordEncrypted = &v
	}
	if s.DefaultDepartmentID != nil {
		v := *s.DefaultDepartmentID
		out.DefaultDepartmentID = &v
	}
	if out.SaveFormats == nil {
		out.SaveFormats = []string{}
	}
	if out.Departments == nil {
		out.Departments = []Department{}
	}
	return out
}

// ArchivePaths returns the non-empty archive paths of all departments.
func (s Settings) ArchivePaths() []string {
	var paths []string
	for _, d := range s.Departments {
		if d.ArchivePath != "" {
			paths = append(paths, d.ArchivePath)
		}
	}
	return paths
}

// WorkRoot is the directory scanned for in-progress work folders.
func (s Settings) WorkRoot() string {
	if s.ScanPath != "" {
		return s.ScanPath
	}
	return s.FolderPath
}
