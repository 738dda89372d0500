package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/identity"
)

type fakeGateway struct {
	items     []domain.MailItem
	detail    *domain.MailDetail
	detailErr error
	created   []domain.FolderRequest
	withAtt   bool
}

func (f *fakeGateway) ListMail(context.Context, int, int) ([]domain.MailItem, error) {
	return f.items, nil
}

func (f *fakeGateway) MailDetail(context.Context, string) (*domain.MailDetail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeGateway) CreateFolder(_ context.Context, req domain.FolderRequest) (*domain.FolderResult, error) {
	f.created = append(f.created, req)
	f.withAtt = false
	return &domain.FolderResult{Path: "/base/" + req.FolderName}, nil
}

func (f *fakeGateway) CreateFolderWithAttachments(_ context.Context, req domain.FolderRequest) (*domain.FolderResult, error) {
	f.created = append(f.created, req)
	f.withAtt = true
	return &domain.FolderResult{Path: "/base/" + req.FolderName}, nil
}

type fakeSettings struct{ s domain.Settings }

func (f fakeSettings) Read() domain.Settings { return f.s }

type fakeDepts struct {
	list []domain.Department
	def  string
}

func (f fakeDepts) Resolve(ref string) *domain.Department {
	for _, d := range f.list {
		if d.ID == ref || d.Name == ref {
			d := d
			return &d
		}
	}
	return nil
}

func (f fakeDepts) GetDefault() *domain.Department { return f.Resolve(f.def) }

type fakeFinder struct {
	check    domain.CheckResult
	checkErr error
	index    map[string]domain.FolderStatus
	indexErr error
	checked  int
}

func (f *fakeFinder) CheckHash(context.Context, string, string, []string) (domain.CheckResult, error) {
	f.checked++
	return f.check, f.checkErr
}

func (f *fakeFinder) Index(context.Context, string, []string) (map[string]domain.FolderStatus, error) {
	return f.index, f.indexErr
}

var testMail = domain.MailItem{
	ID:      "12",
	Subject: "回复：【通知】Q3 预算",
	From:    "张三 <zhang@example.com>",
	Date:    "Tue, 03 Jun 2025 09:15:00 +0800",
}

func testSettings() domain.Settings {
	return domain.Settings{
		FolderPath:          "~/Work",
		ScanPath:            "~/Work",
		FolderNameFormat:    "{{YYYY}}.{{MM}}.{{DD}}_{{subject}}_{{from}}",
		SaveMailContent:     true,
		MailContentFileName: "邮件正文",
		SaveFormats:         []string{"txt", "eml"},
		MailLimit:           50,
		MailDays:            7,
		Departments:         []domain.Department{{ID: "d1", Name: "财务", ArchivePath: "/arch/fin"}},
	}
}

func newTestWorkflow(gw *fakeGateway, finder *fakeFinder, def string) *Workflow {
	s := testSettings()
	w := NewWorkflow(gw, fakeSettings{s}, fakeDepts{list: s.Departments, def: def}, finder)
	w.now = func() time.Time { return time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC) }
	return w
}

func TestCreateFromMail(t *testing.T) {
	gw := &fakeGateway{
		items:  []domain.MailItem{testMail},
		detail: &domain.MailDetail{Body: "body", RawContent: "raw", Attachments: []domain.Attachment{{Filename: "a.xlsx"}}},
	}
	w := newTestWorkflow(gw, &fakeFinder{}, "d1")

	res, err := w.CreateFromMail(context.Background(), "12", "", false)
	if err != nil {
		t.Fatalf("CreateFromMail: %v", err)
	}
	if !gw.withAtt || len(gw.created) != 1 {
		t.Fatalf("gateway calls = %d, withAttachments = %v", len(gw.created), gw.withAtt)
	}
	req := gw.created[0]
	if req.FolderName != "2025.06.03_Q3 预算_张三" {
		t.Errorf("folder name = %q", req.FolderName)
	}
	if req.Hash != identity.MailHash(testMail.Subject, testMail.Date, testMail.From) {
		t.Errorf("hash = %q", req.Hash)
	}
	if req.Department != "财务" || req.Source != domain.SourceMail {
		t.Errorf("department/source = %q/%q", req.Department, req.Source)
	}
	if req.Body != "body" || req.RawContent != "raw" || req.BasePath != "~/Work" || len(req.SaveFormats) != 2 {
		t.Errorf("request = %+v", req)
	}
	if res.Path != "/base/"+req.FolderName {
		t.Errorf("path = %q", res.Path)
	}
}

func TestCreateFromMailDuplicate(t *testing.T) {
	gw := &fakeGateway{items: []domain.MailItem{testMail}, detail: &domain.MailDetail{}}
	finder := &fakeFinder{check: domain.CheckResult{Found: true, Matches: []domain.HashMatch{{Name: "x", Path: "/w/x", Status: domain.StatusArchived}}}}
	w := newTestWorkflow(gw, finder, "")

	_, err := w.CreateFromMail(context.Background(), "12", "", false)
	if !errors.Is(err, domain.ErrAlreadyGenerated) {
		t.Fatalf("err = %v, want ErrAlreadyGenerated", err)
	}
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Matches[0].Path != "/w/x" {
		t.Errorf("duplicate = %+v", dup)
	}
	if len(gw.created) != 0 {
		t.Error("folder should not be created")
	}

	finder.checked = 0
	if _, err := w.CreateFromMail(context.Background(), "12", "", true); err != nil {
		t.Fatalf("forced create: %v", err)
	}
	if finder.checked != 0 {
		t.Error("force should skip the duplicate check")
	}
}

func TestCreateFromMailContinuesWhenChecksFail(t *testing.T) {
	gw := &fakeGateway{items: []domain.MailItem{testMail}, detailErr: errors.New("imap down")}
	w := newTestWorkflow(gw, &fakeFinder{checkErr: errors.New("scan failed")}, "")

	if _, err := w.CreateFromMail(context.Background(), "12", "Legal", false); err != nil {
		t.Fatalf("CreateFromMail: %v", err)
	}
	req := gw.created[0]
	if req.Body != "" || req.Department != "Legal" {
		t.Errorf("request = %+v", req)
	}
}

func TestCreateFromMailUnknownID(t *testing.T) {
	w := newTestWorkflow(&fakeGateway{}, &fakeFinder{}, "")
	if _, err := w.CreateFromMail(context.Background(), "99", "", false); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQuickCreate(t *testing.T) {
	gw := &fakeGateway{}
	w := newTestWorkflow(gw, &fakeFinder{}, "")

	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	if _, err := w.QuickCreate(context.Background(), "  整理/合同  ", day, "d1"); err != nil {
		t.Fatalf("QuickCreate: %v", err)
	}
	req := gw.created[0]
	if gw.withAtt {
		t.Error("quick create must not download attachments")
	}
	if req.FolderName != "2025.02.03_整理合同" {
		t.Errorf("folder name = %q", req.FolderName)
	}
	if req.Hash != identity.FolderHash(req.FolderName) || req.Source != domain.SourceQuick || req.Department != "财务" {
		t.Errorf("request = %+v", req)
	}
	if req.SaveMailContent {
		t.Error("quick create saves no mail content")
	}

	if _, err := w.QuickCreate(context.Background(), "   ", day, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank content err = %v", err)
	}
}

func TestQuickCreateDefaultsToToday(t *testing.T) {
	gw := &fakeGateway{}
	w := newTestWorkflow(gw, &fakeFinder{}, "")
	if _, err := w.QuickCreate(context.Background(), "周报", time.Time{}, ""); err != nil {
		t.Fatal(err)
	}
	if gw.created[0].FolderName != "2025.06.09_周报" {
		t.Errorf("folder name = %q", gw.created[0].FolderName)
	}
	if gw.created[0].Department != "" {
		t.Errorf("department = %q", gw.created[0].Department)
	}
}

func TestListMailAnnotatesStatus(t *testing.T) {
	other := domain.MailItem{ID: "13", Subject: "other", Date: testMail.Date}
	hash := identity.MailHash(testMail.Subject, testMail.Date, testMail.From)
	gw := &fakeGateway{items: []domain.MailItem{testMail, other}}
	w := newTestWorkflow(gw, &fakeFinder{index: map[string]domain.FolderStatus{hash: domain.StatusWorking}}, "")

	entries, err := w.ListMail(context.Background())
	if err != nil {
		t.Fatalf("ListMail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Status != domain.StatusWorking || entries[0].Hash != hash {
		t.Errorf("first = %+v", entries[0])
	}
	if entries[1].Status != domain.StatusNone {
		t.Errorf("second status = %q", entries[1].Status)
	}
}

func TestListMailIgnoresIndexFailure(t *testing.T) {
	gw := &fakeGateway{items: []domain.MailItem{testMail}}
	w := newTestWorkflow(gw, &fakeFinder{indexErr: errors.New("boom")}, "")
	entries, err := w.ListMail(context.Background())
	if err != nil || len(entries) != 1 || entries[0].Status != domain.StatusNone {
		t.Errorf("entries = %+v, err = %v", entries, err)
	}
}
