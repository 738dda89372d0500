// Package workrecord reads and writes the 工作记录.md marker file that
// identifies a work folder.
package workrecord

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/knot/internal/domain"
)

// FileName is the marker file name inside a work folder.
const FileName = "工作记录.md"

// TimeLayout is the format of the creation time field.
const TimeLayout = "2006-01-02 15:04"

const (
	heading = "# 工作记录"
	banner  = "> 此文件由 Knot（绳结）自动创建，用于归档和自动生成周报。"
	marker  = "<!-- 请在此记录工作过程，AI 将根据此内容生成周报 -->"
)

var errNoFrontmatter = errors.New("missing YAML frontmatter")

// Record is the structured content of a marker file.
type Record struct {
	Department string `yaml:"归属部门"`
	CreateTime string `yaml:"创建时间"`
	Source     string `yaml:"来源"`
	Hash       string `yaml:"标识,omitempty"`
	Content    string `yaml:"-"`
}

// New returns a record stamped with now. An empty source defaults to mail.
func New(department, source, hash string, now time.Time) Record {
	if source == "" {
		source = domain.SourceMail
	}
	return Record{
		Department: department,
		CreateTime: now.Format(TimeLayout),
		Source:     source,
		Hash:       hash,
	}
}

// Parse decodes a marker file. Content is the text after the comment
// marker, or after the heading when the marker is absent.
func Parse(data []byte) (*Record, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimLeft(text, " \t\n\ufeff")
	if !strings.HasPrefix(text, "---\n") {
		return nil, errNoFrontmatter
	}
	rest := text[len("---\n"):]

	end := strings.Index(rest, "\n---")
	var front, body string
	switch {
	case strings.HasPrefix(rest, "---"):
		body = rest[3:]
	case end >= 0:
		front = rest[:end]
		body = rest[end+len("\n---"):]
	default:
		return nil, errors.New("unterminated YAML frontmatter")
	}

	rec, err := decodeFront(front)
	if err != nil {
		return nil, err
	}

	if i := strings.Index(body, "-->"); i >= 0 {
		rec.Content = strings.TrimSpace(body[i+len("-->"):])
	} else if i := strings.Index(body, heading); i >= 0 {
		rec.Content = strings.TrimSpace(body[i+len(heading):])
	}
	return &rec, nil
}

// Frontmatter keys.
const (
	keyDepartment = "归属部门"
	keyCreateTime = "创建时间"
	keySource     = "来源"
	keyHash       = "标识"
)

// decodeFront reads the frontmatter fields. Quoted YAML scalars are taken
// as decoded; plain values are taken verbatim from their line, since older
// records were written without quoting and may hold ':', '#', '[' or '@'.
func decodeFront(front string) (Record, error) {
	if strings.TrimSpace(front) == "" {
		return Record{}, nil
	}
	lines := splitLines(front)

	var doc yaml.Node
	yerr := yaml.Unmarshal([]byte(front), &doc)
	if yerr != nil || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		if len(lines) == 0 {
			if yerr == nil {
				yerr = errors.New("frontmatter is not a mapping")
			}
			return Record{}, fmt.Errorf("failed to parse frontmatter: %w", yerr)
		}
		return recordFrom(lines), nil
	}

	values := map[string]string{}
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		quoted := val.Kind == yaml.ScalarNode && val.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0
		switch raw, ok := lines[key]; {
		case quoted:
			values[key] = val.Value
		case ok:
			values[key] = raw
		case val.Kind == yaml.ScalarNode:
			values[key] = val.Value
		}
	}
	return recordFrom(values), nil
}

// splitLines splits each line on its first ':' and keeps the known keys.
func splitLines(front string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(front, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key = strings.TrimSpace(key); key {
		case keyDepartment, keyCreateTime, keySource, keyHash:
			out[key] = strings.TrimSpace(value)
		}
	}
	return out
}

func recordFrom(values map[string]string) Record {
	return Record{
		Department: values[keyDepartment],
		CreateTime: values[keyCreateTime],
		Source:     values[keySource],
		Hash:       values[keyHash],
	}
}

// Render encodes rec as a marker file.
func Render(rec Record) ([]byte, error) {
	front, err := yaml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n")
	buf.WriteString(heading + "\n\n")
	buf.WriteString(banner + "\n\n")
	buf.WriteString(marker + "\n\n")
	if rec.Content != "" {
		buf.WriteString(rec.Content + "\n")
	}
	return buf.Bytes(), nil
}

// PathIn returns the marker path for a folder.
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// Exists reports whether dir carries a marker file.
func Exists(dir string) bool {
	fi, err := os.Stat(PathIn(dir))
	return err == nil && !fi.IsDir()
}

// Read parses the marker file in dir. A missing file returns an error
// matching domain.ErrNotFound.
func Read(dir string) (*Record, error) {
	data, err := os.ReadFile(PathIn(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s in %s: %w", FileName, dir, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read work record: %w", err)
	}
	return Parse(data)
}

// Write renders rec into dir.
func Write(dir string, rec Record) (string, error) {
	data, err := Render(rec)
	if err != nil {
		return "", err
	}
	path := PathIn(dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write work record: %w", err)
	}
	return path, nil
}

// Update rewrites the department and content of the record in dir. Empty
// arguments leave the corresponding field unchanged.
func Update(dir, department, content string) (*Record, error) {
	rec, err := Read(dir)
	if err != nil {
		return nil, err
	}
	if department != "" {
		rec.Department = department
	}
	if content != "" {
		rec.Content = content
	}
	if rec.Source == "" {
		rec.Source = domain.SourceMail
	}
	if _, err := Write(dir, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}
