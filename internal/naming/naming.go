// Package naming turns mail metadata into filesystem-safe work folder names.
package naming

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Length limits, counted in runes.
const (
	MaxSubject = 50
	MaxFrom    = 20
	MaxContent = 50
)

// DefaultFormat is the folder name template used when none is configured.
const DefaultFormat = "{{YYYY}}.{{MM}}.{{DD}}_{{subject}}"

var (
	bracketRe = regexp.MustCompile(`【[^】]*】`)
	tokenRe   = regexp.MustCompile(`\{\{(\w+)\}\}`)

	// Forward and reply prefixes. Each requires a trailing colon so that
	// subjects like "Report" are left alone.
	prefixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^转发[：:]\s*`),
		regexp.MustCompile(`(?i)^转寄[：:]\s*`),
		regexp.MustCompile(`(?i)^回复[：:]\s*`),
		regexp.MustCompile(`(?i)^答复[：:]\s*`),
		regexp.MustCompile(`(?i)^Fwd?[：:]\s*`),
		regexp.MustCompile(`(?i)^Re[：:]\s*`),
		regexp.MustCompile(`(?i)^Fw[：:]\s*`),
	}

	dateLayouts = []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		time.DateOnly,
		"2006/01/02",
		"2006.01.02",
	}
)

// Message is the mail metadata a folder name is derived from.
type Message struct {
	Subject string
	Date    string
	From    string
}

// CleanSubject removes 【…】 tags and stacked forward/reply prefixes.
func CleanSubject(subject string) string {
	cleaned := bracketRe.ReplaceAllString(subject, "")
	for {
		before := len(cleaned)
		for _, re := range prefixRes {
			cleaned = re.ReplaceAllString(cleaned, "")
		}
		if len(cleaned) == before || cleaned == "" {
			break
		}
	}
	return strings.TrimSpace(cleaned)
}

// Sanitize drops characters that are illegal in file names on common
// platforms and truncates the result to max runes. max <= 0 disables
// truncation.
func Sanitize(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, s)
	return truncate(s, max)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// SenderName returns the display part of a From header, i.e. the text
// before the first '<'. When there is no display part the whole value is
// used.
func SenderName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		if name := strings.TrimSpace(from[:i]); name != "" {
			return name
		}
	}
	return strings.TrimSpace(from)
}

// ParseDate parses the date formats seen in mail lists and API payloads.
// The calendar date is kept in the value's own offset.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

type resolver func(m Message, date time.Time, ok bool) string

// tokens is the closed set of template placeholders.
var tokens = map[string]resolver{
	"YYYY": func(_ Message, d time.Time, ok bool) string {
		if !ok {
			return ""
		}
		return fmt.Sprintf("%04d", d.Year())
	},
	"MM": func(_ Message, d time.Time, ok bool) string {
		if !ok {
			return ""
		}
		return fmt.Sprintf("%02d", int(d.Month()))
	},
	"DD": func(_ Message, d time.Time, ok bool) string {
		if !ok {
			return ""
		}
		return fmt.Sprintf("%02d", d.Day())
	},
	"subject": func(m Message, _ time.Time, _ bool) string {
		return Sanitize(CleanSubject(m.Subject), MaxSubject)
	},
	"from": func(m Message, _ time.Time, _ bool) string {
		return Sanitize(SenderName(m.From), MaxFrom)
	},
}

// UnknownTokens lists the placeholders in template that FormatFolderName
// would leave as literal text, in order of first appearance.
func UnknownTokens(template string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range tokenRe.FindAllStringSubmatch(template, -1) {
		if _, ok := tokens[m[1]]; ok || seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		out = append(out, m[0])
	}
	return out
}

// FormatFolderName expands template for m. Unknown placeholders stay as
// literal text; an unparseable date yields empty date fields.
func FormatFolderName(template string, m Message) string {
	date, ok := ParseDate(m.Date)
	return tokenRe.ReplaceAllStringFunc(template, func(match string) string {
		name := tokenRe.FindStringSubmatch(match)[1]
		resolve, known := tokens[name]
		if !known {
			return match
		}
		return resolve(m, date, ok)
	})
}

// QuickFolderName builds the YYYY.MM.DD_<content> name used for folders
// created without a mail. It returns "" for blank content.
func QuickFolderName(content string, day time.Time) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return day.Format("2006.01.02") + "_" + Sanitize(content, MaxContent)
}
