package mailbox

import (
	"bytes"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/lu-zhengda/knot/internal/domain"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	blockTags    = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/tr|/li|/h[1-6])\s*/?>`)
	blankRuns    = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
)

// charsetReader maps the GB family through x/text and defers everything
// else to go-message.
func charsetReader(name string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gb2312", "gbk", "gb18030", "x-gbk":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	case "", "utf-8", "utf8", "us-ascii":
		return input, nil
	}
	return charset.Reader(name, input)
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// decodeHeader decodes RFC 2047 encoded words. Undecodable input is
// returned unchanged.
func decodeHeader(s string) string {
	out, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// stripHTML renders an HTML body as plain text.
func stripHTML(s string) string {
	s = blockTags.ReplaceAllString(s, "$0\n")
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// safeFilename replaces path separators so an attachment can never escape
// its target directory.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	switch name {
	case "", ".", "..":
		return "attachment"
	}
	return name
}

type attachmentPart struct {
	domain.Attachment
	data []byte
}

type parsedMessage struct {
	text        string
	html        string
	attachments []attachmentPart
}

// body returns the plain text body, falling back to the stripped HTML.
func (p parsedMessage) body() string {
	if strings.TrimSpace(p.text) != "" {
		return p.text
	}
	if p.html != "" {
		return stripHTML(p.html)
	}
	return ""
}

func (p parsedMessage) attachmentInfo() []domain.Attachment {
	out := make([]domain.Attachment, 0, len(p.attachments))
	for _, a := range p.attachments {
		out = append(out, a.Attachment)
	}
	return out
}

// parseMessage splits a raw RFC 822 message into its text, HTML and
// attachment parts. A message go-message cannot parse is treated as plain
// text.
func parseMessage(raw []byte) parsedMessage {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return parsedMessage{text: string(raw)}
	}
	defer mr.Close()

	var p parsedMessage
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && p.text == "":
				p.text = string(data)
			case strings.HasPrefix(contentType, "text/html") && p.html == "":
				p.html = string(data)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			p.attachments = append(p.attachments, attachmentPart{
				Attachment: domain.Attachment{
					Filename:    decodeHeader(filename),
					Size:        int64(len(data)),
					ContentType: contentType,
				},
				data: data,
			})
		}
	}
	return p
}
