package mailparser

import (
	"strings"
	"testing"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParser_PlainText(t *testing.T) {
	raw := crlf(`From: "PayPal Support" <Support@PayPa1.com>
Reply-To: attacker@gmail.com
To: victim@company.com
Subject: Urgent: verify your account
Received-SPF: fail
Content-Type: text/plain; charset=utf-8

Click https://bit.ly/abc123 now.
Or visit (https://paypa1.com/login).
Again: https://bit.ly/abc123, thanks.
`)

	email, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, `"PayPal Support" <Support@PayPa1.com>`, email.Sender)
	assert.Equal(t, "PayPal Support", email.SenderName)
	assert.Equal(t, "support@paypa1.com", email.SenderAddress)
	assert.Equal(t, "attacker@gmail.com", email.ReplyTo)
	assert.Equal(t, "Urgent: verify your account", email.Subject)
	assert.Contains(t, email.Body, "Click https://bit.ly/abc123 now.")
	assert.Equal(t, []string{
		"https://bit.ly/abc123",
		"https://paypa1.com/login",
		"https://bit.ly/abc123",
	}, email.URLs)
	assert.Equal(t, "fail", email.Headers["Received-SPF"])
	assert.Empty(t, email.Attachments)
}

func TestParser_EncodedSubject(t *testing.T) {
	raw := crlf(`From: =?UTF-8?B?w4lxdWlwZSBTw6ljdXJpdMOp?= <secu@bank.fr>
Subject: =?UTF-8?Q?Votre_compte_est_bloqu=C3=A9?=

body
`)

	email, err := NewParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Votre compte est bloqué", email.Subject)
	assert.Equal(t, "Équipe Sécurité", email.SenderName)
}

func TestParser_MultipartAlternativeWithAttachment(t *testing.T) {
	raw := crlf(`From: billing@vendor.com
Subject: Invoice
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Pay here: https://pay.vendor.com/?a=1&b=2
Plain only: https://plain-only.example/x

--inner
Content-Type: text/html; charset=utf-8

<html><head><style>a{}</style><script>var u="https://script.example/";</script></head>
<body><p>Pay <a href="https://pay.vendor.com/?a=1&amp;b=2">here</a></p>
<img src="https://track.example/p.gif">
<p>Visit https://text.example/page.</p></body></html>

--inner--

--outer
Content-Type: application/octet-stream; name="invoice.pdf.exe"
Content-Disposition: attachment; filename="invoice.pdf.exe"
Content-Transfer-Encoding: base64

TVqQAAMAAAAEAAAA

--outer--
`)

	email, err := NewParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://pay.vendor.com/?a=1&b=2",
		"https://track.example/p.gif",
		"https://text.example/page",
		"https://plain-only.example/x",
	}, email.URLs)
	assert.Contains(t, email.Body, "Pay here")
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, domain.Attachment{Filename: "invoice.pdf.exe", ContentType: "application/octet-stream"}, email.Attachments[0])
}

func TestParser_HTMLOnlyBodyRenderedToText(t *testing.T) {
	raw := crlf(`From: a@b.com
Subject: hi
Content-Type: text/html; charset=utf-8

<div>Hello <b>there</b></div><p>Reset your password at <a href="http://evil.test/reset">this link</a></p>
`)

	email, err := NewParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello there\nReset your password at this link", email.Body)
	assert.Equal(t, []string{"http://evil.test/reset"}, email.URLs)
}

func TestParser_AnchorTextRepeatingItsHref(t *testing.T) {
	raw := crlf(`From: a@b.com
Subject: hi
Content-Type: text/html; charset=utf-8

<p><a href="https://evil.test/login">https://evil.test/login</a></p>
<p><a href="https://evil.test/login"><span>https://evil.test/login</span></a></p>
<p><a href="https://evil.test/pay">https://bank.example/</a></p>
`)

	email, err := NewParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://evil.test/login",
		"https://evil.test/login",
		"https://evil.test/pay",
		"https://bank.example/",
	}, email.URLs)
}

func TestParser_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"whitespace", []byte("  \r\n \r\n")},
		{"no header block", []byte("\r\njust a body without headers\r\n")},
		{"not a message", []byte("not an email at all\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParse)
			var parseErr *domain.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestFindURLs(t *testing.T) {
	text := "see https://a.example/x?y=1&amp;z=2. and HTTP://B.example/, not ftp://c.example or https://"
	assert.Equal(t, []string{"https://a.example/x?y=1&z=2", "HTTP://B.example/"}, findURLs(text))
}
