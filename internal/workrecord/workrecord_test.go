package workrecord

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lu-zhengda/knot/internal/domain"
)

// legacy is a marker file as written before fingerprints were recorded.
const legacy = "---\n归属部门: 财务部\n创建时间: 2025-01-19 10:30\n来源: 邮件\n---\n# 工作记录\n\n> 此文件由 Knot（绳结）自动创建，用于归档和自动生成周报。\n\n<!-- 请在此记录工作过程，AI 将根据此内容生成周报 -->\n\n核对了发票\n跟进付款\n"

func TestParse_Legacy(t *testing.T) {
	rec, err := Parse([]byte(legacy))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if rec.Department != "财务部" {
		t.Errorf("department = %q, want %q", rec.Department, "财务部")
	}
	if rec.CreateTime != "2025-01-19 10:30" {
		t.Errorf("create_time = %q, want %q", rec.CreateTime, "2025-01-19 10:30")
	}
	if rec.Source != "邮件" {
		t.Errorf("source = %q, want %q", rec.Source, "邮件")
	}
	if rec.Hash != "" {
		t.Errorf("hash = %q, want empty", rec.Hash)
	}
	if rec.Content != "核对了发票\n跟进付款" {
		t.Errorf("content = %q", rec.Content)
	}
}

func TestParse_LegacyUnquotedDepartments(t *testing.T) {
	for _, dept := range []string{"Sales: EMEA", "研发 #2", "[外包]", "@运营"} {
		t.Run(dept, func(t *testing.T) {
			data := strings.Replace(legacy, "归属部门: 财务部", "归属部门: "+dept, 1)
			data = strings.Replace(data, "来源: 邮件\n", "来源: 邮件\n标识: 0123456789abcdef\n", 1)
			rec, err := Parse([]byte(data))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if rec.Department != dept {
				t.Errorf("department = %q, want %q", rec.Department, dept)
			}
			if rec.CreateTime != "2025-01-19 10:30" || rec.Source != "邮件" || rec.Hash != "0123456789abcdef" {
				t.Errorf("got %+v", rec)
			}
			if rec.Content != "核对了发票\n跟进付款" {
				t.Errorf("content = %q", rec.Content)
			}
		})
	}
}

func TestRender_RoundTripsAwkwardDepartments(t *testing.T) {
	for _, dept := range []string{"Sales: EMEA", "研发 #2", "[外包]", "@运营", "'quoted'"} {
		rec := Record{Department: dept, CreateTime: "2025-01-19 10:30", Source: "邮件", Hash: "abc"}
		data, err := Render(rec)
		if err != nil {
			t.Fatalf("Render(%q) error: %v", dept, err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", dept, err)
		}
		if got.Department != dept {
			t.Errorf("department = %q, want %q", got.Department, dept)
		}
	}
}

func TestParse_NonMappingFrontmatter(t *testing.T) {
	if _, err := Parse([]byte("---\n- a\n- b\n---\n# 工作记录\n")); err == nil {
		t.Error("expected an error for a frontmatter without work record fields")
	}
}

func TestParse_EmptyDepartment(t *testing.T) {
	data := "---\n归属部门: \n创建时间: 2025-01-19 10:30\n来源: 快速创建\n---\n# 工作记录\n\n<!-- c -->\n"
	rec, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if rec.Department != "" {
		t.Errorf("department = %q, want empty", rec.Department)
	}
	if rec.Content != "" {
		t.Errorf("content = %q, want empty", rec.Content)
	}
}

func TestParse_HeadingFallback(t *testing.T) {
	data := "---\n来源: 邮件\n---\n# 工作记录\n\n手写内容\n"
	rec, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if rec.Content != "手写内容" {
		t.Errorf("content = %q, want %q", rec.Content, "手写内容")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"no frontmatter": "# 工作记录\n随便写写\n",
		"unterminated":   "---\n来源: 邮件\n# 工作记录\n",
		"bad yaml":       "---\n归属部门: [unclosed\n---\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Errorf("Parse(%q) should fail", data)
			}
		})
	}
}

func TestRenderParse_RoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 4, 9, 5, 0, 0, time.Local)
	rec := New("研发部", "", "0123456789abcdef", now)
	rec.Content = "部门: 需要冒号也没关系"

	data, err := Render(rec)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(string(data), "# 工作记录") {
		t.Error("rendered file is missing the heading")
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if *got != rec {
		t.Errorf("round trip = %+v, want %+v", *got, rec)
	}
	if got.Source != domain.SourceMail {
		t.Errorf("default source = %q, want %q", got.Source, domain.SourceMail)
	}
	if got.CreateTime != "2025-03-04 09:05" {
		t.Errorf("create_time = %q", got.CreateTime)
	}
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("empty department keeps old value", func(t *testing.T) {
		rec, err := Update(dir, "", "新的内容")
		if err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if rec.Department != "财务部" {
			t.Errorf("department = %q, want %q", rec.Department, "财务部")
		}
		reread, _ := Read(dir)
		if reread.Content != "新的内容" {
			t.Errorf("content = %q, want %q", reread.Content, "新的内容")
		}
		if reread.CreateTime != "2025-01-19 10:30" {
			t.Errorf("create_time changed to %q", reread.CreateTime)
		}
	})

	t.Run("empty content keeps old value", func(t *testing.T) {
		if _, err := Update(dir, "行政部", ""); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		reread, _ := Read(dir)
		if reread.Department != "行政部" {
			t.Errorf("department = %q, want %q", reread.Department, "行政部")
		}
		if reread.Content != "新的内容" {
			t.Errorf("content = %q, want %q", reread.Content, "新的内容")
		}
	})

	t.Run("missing marker", func(t *testing.T) {
		_, err := Update(t.TempDir(), "x", "y")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists() = true for empty dir")
	}
	if _, err := Write(dir, New("", "", "", time.Now())); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !Exists(dir) {
		t.Error("Exists() = false after Write")
	}
}
