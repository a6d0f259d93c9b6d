// Package normalize turns raw email and PDF inputs into the plain-text
// documents the provider parsers consume. Multipart bodies are walked
// recursively, PDF attachments are rendered to text, and HTML parts
// back up a missing or stub plain-text body.
package normalize

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// minPlainTextLen is the default length below which a plain-text body
// is considered a stub and the HTML alternative is used instead.
const minPlainTextLen = 100

// Document is a normalized input ready for parser dispatch.
type Document struct {
	Sender   string
	Subject  string
	Text     string
	HasPDF   bool
	RawEmail []byte
}

// Attachment is a PDF payload carried by an email.
type Attachment struct {
	Name string
	Data []byte
}

// Normalizer converts raw emails into Documents. A nil PDF extractor
// skips attachment text rather than failing the email.
type Normalizer struct {
	pdf PDFExtractor
}

func NewNormalizer(pdf PDFExtractor) *Normalizer {
	return &Normalizer{pdf: pdf}
}

type bodyParts struct {
	plain  []string
	html   []string
	pdf    []string
	hasPDF bool
}

// ParseEmail normalizes one raw RFC 5322 message.
func (n *Normalizer) ParseEmail(raw []byte) (*Document, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	decoder := mime.WordDecoder{}
	subject := msg.Header.Get("Subject")
	if decoded, err := decoder.DecodeHeader(subject); err == nil {
		subject = decoded
	}
	sender := msg.Header.Get("From")
	if decoded, err := decoder.DecodeHeader(sender); err == nil {
		sender = decoded
	}

	var parts bodyParts
	n.walkPart(msg.Header, msg.Body, &parts)

	doc := &Document{
		Sender:   sender,
		Subject:  subject,
		HasPDF:   parts.hasPDF,
		RawEmail: raw,
	}
	doc.Text = chooseBody(&parts, sender)
	return doc, nil
}

// headerGetter is the common shape of mail.Header and part headers.
type headerGetter interface {
	Get(key string) string
}

func (n *Normalizer) walkPart(header headerGetter, body io.Reader, parts *bodyParts) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err != nil {
				return
			}
			n.walkPart(part.Header, part, parts)
		}
	}

	switch {
	case mediaType == "text/plain":
		if text := decodeBody(header, body); strings.TrimSpace(text) != "" {
			parts.plain = append(parts.plain, text)
		}
	case mediaType == "text/html":
		if markup := decodeBody(header, body); strings.TrimSpace(markup) != "" {
			parts.html = append(parts.html, markup)
		}
	case isPDFPart(mediaType, header, params):
		parts.hasPDF = true
		name := pdfName(header, params)
		if n.pdf == nil {
			return
		}
		data, err := decodeBinary(header, body)
		if err != nil {
			slog.Warn("Error decoding PDF attachment", "name", name, "error", err)
			return
		}
		pages, err := n.pdf.ExtractPages(data)
		if err != nil {
			slog.Warn("Error extracting PDF attachment", "name", name, "error", err)
			return
		}
		block := fmt.Sprintf("=== PDF: %s ===\n%s", name, strings.Join(pages, "\n"))
		parts.pdf = append(parts.pdf, block)
	}
}

func isPDFPart(mediaType string, header headerGetter, params map[string]string) bool {
	if mediaType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(pdfName(header, params)), ".pdf")
}

func pdfName(header headerGetter, params map[string]string) string {
	if name := params["name"]; name != "" {
		return name
	}
	if disposition := header.Get("Content-Disposition"); disposition != "" {
		if _, dparams, err := mime.ParseMediaType(disposition); err == nil {
			if name := dparams["filename"]; name != "" {
				return name
			}
		}
	}
	return "attachment.pdf"
}

func decodeBody(header headerGetter, body io.Reader) string {
	data, err := decodeBinary(header, body)
	if err != nil {
		return ""
	}
	return string(data)
}

var whitespaceStripper = strings.NewReplacer("\r", "", "\n", "", " ", "", "\t", "")

func decodeBinary(header headerGetter, body io.Reader) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding")))
	switch encoding {
	case "base64":
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(whitespaceStripper.Replace(string(raw)))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(body))
	default:
		return io.ReadAll(body)
	}
}

// chooseBody picks between the plain-text and HTML renditions. Some
// senders ship a stub plain-text part next to the real HTML receipt,
// so short plain text falls back to the HTML conversion; EVIE's plain
// parts are reliably stubs and HTML is always preferred for them.
func chooseBody(parts *bodyParts, sender string) string {
	lowerSender := strings.ToLower(sender)
	permissive := strings.Contains(lowerSender, "evie") || strings.Contains(lowerSender, "goevie")

	plain := strings.Join(parts.plain, "\n")
	htmlText := ""
	if len(parts.html) > 0 {
		htmlText = htmlToText(strings.Join(parts.html, "\n"))
	}

	threshold := minPlainTextLen
	if permissive || strings.Contains(lowerSender, "bppulse") {
		threshold = 50
	}

	body := plain
	switch {
	case permissive && htmlText != "":
		body = htmlText
	case len(strings.TrimSpace(plain)) < threshold && htmlText != "":
		body = htmlText
	}

	body = cleanLines(body, permissive)
	if len(parts.pdf) > 0 {
		body = strings.TrimSpace(body + "\n\n" + strings.Join(parts.pdf, "\n\n"))
	}
	return body
}

// PDFAttachments returns the raw PDF payloads of an email without
// rendering them, for parsers that run their own per-PDF extraction.
func PDFAttachments(raw []byte) ([]Attachment, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	var attachments []Attachment
	collectPDFs(msg.Header, msg.Body, &attachments)
	return attachments, nil
}

func collectPDFs(header headerGetter, body io.Reader, out *[]Attachment) {
	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err != nil {
				return
			}
			collectPDFs(part.Header, part, out)
		}
	}

	if !isPDFPart(mediaType, header, params) {
		return
	}
	data, err := decodeBinary(header, body)
	if err != nil {
		slog.Warn("Error decoding PDF attachment", "error", err)
		return
	}
	*out = append(*out, Attachment{Name: pdfName(header, params), Data: data})
}
