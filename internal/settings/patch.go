package settings

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lu-zhengda/knot/internal/domain"
)

// Patch names the settings fields a caller may change. Nil fields are left
// untouched. For the nullable fields a pointer to "" clears the value.
type Patch struct {
	WindowStyle         *domain.WindowStyle
	FolderPath          *string
	ScanPath            *string
	FolderNameFormat    *string
	UseSubFolder        *bool
	SubFolderName       *string
	SaveMailContent     *bool
	MailContentFileName *string
	SaveFormats         []string

	MailServer            *string
	MailPort              *int
	MailUsername          *string
	MailPasswordEncrypted *string
	MailUseSSL            *bool
	MailLimit             *int
	MailDays              *int

	Departments         []domain.Department
	DefaultDepartmentID *string
}

// Validate checks the patch at the boundary, before anything is persisted.
func (p Patch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.WindowStyle, validation.NilOrNotEmpty,
			validation.In(domain.WindowIntegrated, domain.WindowClassic)),
		validation.Field(&p.FolderNameFormat, validation.NilOrNotEmpty),
		validation.Field(&p.SaveFormats,
			validation.Each(validation.In(domain.FormatTXT, domain.FormatEML, domain.FormatPDF))),
		validation.Field(&p.MailPort, validation.NilOrNotEmpty, validation.Min(1), validation.Max(65535)),
		validation.Field(&p.MailLimit, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&p.MailDays, validation.Min(0)),
		validation.Field(&p.Departments, validation.Each(validation.By(validateDepartment))),
	)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

func validateDepartment(value interface{}) error {
	d, ok := value.(domain.Department)
	if !ok {
		return errors.New("must be a department")
	}
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Name, validation.Required, validation.By(notBlank)),
		validation.Field(&d.ArchivePath, validation.Required, validation.By(notBlank)),
	)
}

func notBlank(value interface{}) error {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// Apply returns base with the patch applied. base is not modified.
func (p Patch) Apply(base domain.Settings) domain.Settings {
	out := base.Clone()
	if p.WindowStyle != nil {
		out.WindowStyle = *p.WindowStyle
	}
	setString(&out.FolderPath, p.FolderPath)
	setString(&out.ScanPath, p.ScanPath)
	setString(&out.FolderNameFormat, p.FolderNameFormat)
	setBool(&out.UseSubFolder, p.UseSubFolder)
	setString(&out.SubFolderName, p.SubFolderName)
	setBool(&out.SaveMailContent, p.SaveMailContent)
	setString(&out.MailContentFileName, p.MailContentFileName)
	if p.SaveFormats != nil {
		out.SaveFormats = append([]string{}, p.SaveFormats...)
	}
	setString(&out.MailServer, p.MailServer)
	setInt(&out.MailPort, p.MailPort)
	setString(&out.MailUsername, p.MailUsername)
	setNullable(&out.MailPasswordEncrypted, p.MailPasswordEncrypted)
	setBool(&out.MailUseSSL, p.MailUseSSL)
	setInt(&out.MailLimit, p.MailLimit)
	setInt(&out.MailDays, p.MailDays)
	if p.Departments != nil {
		out.Departments = append([]domain.Department{}, p.Departments...)
	}
	setNullable(&out.DefaultDepartmentID, p.DefaultDepartmentID)
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setNullable(dst **string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		*dst = nil
		return
	}
	s := *v
	*dst = &s
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
