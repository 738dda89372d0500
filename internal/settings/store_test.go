package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lu-zhengda/knot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "knot", "settings.json"))
}

func TestRead_MissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	got := s.Read()
	want := Defaults()
	if got.FolderNameFormat != want.FolderNameFormat {
		t.Errorf("format = %q, want %q", got.FolderNameFormat, want.FolderNameFormat)
	}
	if got.MailPort != 993 || got.MailLimit != 50 || got.MailDays != 7 {
		t.Errorf("mail defaults = %d/%d/%d", got.MailPort, got.MailLimit, got.MailDays)
	}
	if got.Departments == nil {
		t.Error("departments should be an empty list, not nil")
	}
	if got.DefaultDepartmentID != nil {
		t.Error("default department should be unset")
	}
}

func TestWrite_MergesOntoDefaults(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Write(Patch{FolderPath: Ptr("/x")}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got := NewStore(s.Path()).Read()
	if got.FolderPath != "/x" {
		t.Errorf("folderPath = %q, want %q", got.FolderPath, "/x")
	}
	want := Defaults()
	if got.ScanPath != want.ScanPath || got.SubFolderName != want.SubFolderName ||
		got.MailContentFileName != want.MailContentFileName || !got.SaveMailContent {
		t.Errorf("defaults not preserved: %+v", got)
	}
}

func TestRead_PartialFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o700); err != nil {
		t.Fatal(err)
	}
	partial := `{"folderPath": "/work", "unknownKey": true, "mailDays": 30}`
	if err := os.WriteFile(s.Path(), []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	got := s.Read()
	if got.FolderPath != "/work" || got.MailDays != 30 {
		t.Errorf("persisted values lost: %+v", got)
	}
	if got.MailLimit != 50 {
		t.Errorf("mailLimit = %d, want default 50", got.MailLimit)
	}
	if len(got.SaveFormats) != 1 || got.SaveFormats[0] != "txt" {
		t.Errorf("saveFormats = %v, want [txt]", got.SaveFormats)
	}
}

func TestRead_CorruptFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := s.Read()
	if got.FolderPath != Defaults().FolderPath {
		t.Errorf("folderPath = %q, want default", got.FolderPath)
	}

	_, err := s.load()
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "parse" {
		t.Errorf("load() error = %v, want parse StorageError", err)
	}
}

func TestWrite_InvalidPatchLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Write(Patch{FolderPath: Ptr("/keep")}); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.Path())

	tests := []struct {
		name string
		p    Patch
	}{
		{"bad save format", Patch{SaveFormats: []string{"docx"}}},
		{"bad window style", Patch{WindowStyle: Ptr(domain.WindowStyle("floating"))}},
		{"port out of range", Patch{MailPort: Ptr(70000)}},
		{"zero port", Patch{MailPort: Ptr(0)}},
		{"empty template", Patch{FolderNameFormat: Ptr("")}},
		{"blank department", Patch{Departments: []domain.Department{{ID: "x", Name: " ", ArchivePath: "/a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Write(tt.p)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Write() error = %v, want ErrValidation", err)
			}
			after, _ := os.ReadFile(s.Path())
			if string(after) != string(before) {
				t.Error("settings file changed after rejected patch")
			}
		})
	}
}

func TestWrite_NullableFields(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Write(Patch{MailPasswordEncrypted: Ptr("v1:abc"), DefaultDepartmentID: Ptr("d1")})
	if err != nil {
		t.Fatal(err)
	}
	if st.MailPasswordEncrypted == nil || *st.MailPasswordEncrypted != "v1:abc" {
		t.Errorf("password blob = %v", st.MailPasswordEncrypted)
	}

	st, err = s.Write(Patch{MailPasswordEncrypted: Ptr(""), DefaultDepartmentID: Ptr("")})
	if err != nil {
		t.Fatal(err)
	}
	if st.MailPasswordEncrypted != nil || st.DefaultDepartmentID != nil {
		t.Error("empty string should clear nullable fields")
	}
}

func TestRead_SnapshotIsolation(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Write(Patch{SaveFormats: []string{"txt", "eml"}}); err != nil {
		t.Fatal(err)
	}
	snap := s.Read()
	snap.SaveFormats[0] = "pdf"

	if got := s.Read().SaveFormats[0]; got != "txt" {
		t.Errorf("stored saveFormats[0] = %q, want txt", got)
	}
}

func TestWrite_NoTempFilesLeft(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Write(Patch{MailLimit: Ptr(10 + i)}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only settings.json", len(entries))
	}
}

func TestUpdate_SerializesWriters(t *testing.T) {
	s := newTestStore(t)
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(func(cur domain.Settings) (*Patch, error) {
				return &Patch{MailLimit: Ptr(cur.MailLimit + 1)}, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := s.Read().MailLimit; got != 50+n {
		t.Errorf("mailLimit = %d, want %d", got, 50+n)
	}
}
