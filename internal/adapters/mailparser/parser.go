package mailparser

import (
	"bytes"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/stoik/phishing-detector/internal/domain"
)

// headers copied into ParsedEmail.Headers for the heuristics
var keptHeaders = []string{
	"Received-SPF",
	"Authentication-Results",
	"Return-Path",
	"Message-Id",
	"Date",
	"To",
	"X-Mailer",
}

// Parser decodes raw RFC 5322 messages
type Parser struct {
	html *HTMLParser
}

// NewParser creates a message parser
func NewParser() *Parser {
	return &Parser{html: NewHTMLParser()}
}

type bodyParts struct {
	text        string
	html        string
	attachments []domain.Attachment
}

// Parse extracts sender, subject, body, URLs and attachments from a raw message
func (p *Parser) Parse(raw []byte) (domain.ParsedEmail, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.ParsedEmail{}, domain.NewParseError("empty payload", nil)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return domain.ParsedEmail{}, domain.NewParseError("unreadable message", err)
	}
	if mr.Header.Len() == 0 {
		return domain.ParsedEmail{}, domain.NewParseError("no header block", nil)
	}

	parts, err := p.readParts(mr)
	if err != nil {
		return domain.ParsedEmail{}, domain.NewParseError("malformed MIME structure", err)
	}

	email := domain.ParsedEmail{
		Subject:     decodedHeader(mr.Header, "Subject"),
		Attachments: parts.attachments,
		Headers:     collectHeaders(mr.Header),
	}
	if email.Attachments == nil {
		email.Attachments = []domain.Attachment{}
	}
	p.fillSender(mr.Header, &email)

	email.Body = strings.TrimSpace(parts.text)
	if email.Body == "" && parts.html != "" {
		// rendering errors leave the body empty, URLs are still extracted below
		email.Body, _ = p.html.Parse(parts.html)
	}

	email.URLs = p.collectURLs(parts)
	return email, nil
}

func (p *Parser) readParts(mr *mail.Reader) (bodyParts, error) {
	var parts bodyParts

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return parts, err
		}
		if part == nil {
			continue
		}

		var header message.Header
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			header = h.Header
		case *mail.AttachmentHeader:
			header = h.Header
		default:
			continue
		}

		ct, filename, attached := describePart(header)
		if attached {
			parts.attachments = append(parts.attachments, domain.Attachment{Filename: filename, ContentType: ct})
			continue
		}

		// a part with a corrupt transfer encoding keeps what could be decoded
		body, _ := io.ReadAll(part.Body)
		switch {
		case ct == "text/html":
			if parts.html == "" {
				parts.html = string(body)
			}
		case parts.text == "":
			parts.text = string(body)
		}
	}

	return parts, nil
}

// describePart decides whether a leaf part is a readable body or an
// attachment. Parts without a Content-Type are plain text (RFC 2045 default).
func describePart(h message.Header) (ct, filename string, attached bool) {
	ct, ctParams, _ := h.ContentType()
	ct = strings.ToLower(ct)
	disp, _, _ := h.ContentDisposition()

	ah := mail.AttachmentHeader{Header: h}
	filename, err := ah.Filename()
	if err != nil || filename == "" {
		filename = ctParams["name"]
	}

	isText := ct == "" || ct == "text/plain" || ct == "text/html"
	if filename == "" && disp != "attachment" && isText {
		return ct, "", false
	}
	return ct, filename, true
}

func (p *Parser) fillSender(h mail.Header, email *domain.ParsedEmail) {
	email.Sender = decodedHeader(h, "From")

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.SenderName = from[0].Name
		email.SenderAddress = strings.ToLower(from[0].Address)
	} else if m := embeddedAddressPattern.FindString(email.Sender); m != "" {
		email.SenderAddress = strings.ToLower(m)
	}

	if replyTo, err := h.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		email.ReplyTo = strings.ToLower(replyTo[0].Address)
	}
}

func decodedHeader(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return strings.TrimSpace(h.Get(key))
	}
	return strings.TrimSpace(v)
}

func collectHeaders(h mail.Header) map[string]string {
	headers := make(map[string]string)
	for _, key := range keptHeaders {
		if values := h.Values(key); len(values) > 0 {
			headers[key] = strings.Join(values, "; ")
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
