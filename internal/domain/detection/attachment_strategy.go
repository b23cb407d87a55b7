package detection

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Executables and scripts run arbitrary code on the victim's machine
var executableExtensions = []string{
	".exe", ".scr", ".bat", ".cmd", ".com", ".pif",
	".vbs", ".js", ".jar", ".msi", ".app", ".ps1", ".hta",
}

// Office documents with macro support
var macroExtensions = []string{
	".doc", ".xls", ".xlsm", ".docm", ".pptm", ".xlsb", ".dotm",
}

// Extensions attackers put in front of the real one (invoice.pdf.exe)
var decoyExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".txt", ".jpg", ".jpeg", ".png", ".zip",
}

// AttachmentStrategy detects suspicious attachment types
//
// Attack pattern: Malicious attachments are the #1 malware delivery method
type AttachmentStrategy struct{}

// NewAttachmentStrategy creates a new suspicious attachments detection strategy
func NewAttachmentStrategy() *AttachmentStrategy {
	return &AttachmentStrategy{}
}

// Name returns the strategy name
func (s *AttachmentStrategy) Name() string {
	return "Suspicious Attachments"
}

// Detect raises at most one signal per risk category, naming the first offending file
func (s *AttachmentStrategy) Detect(in Input, context *DetectionContext) []Signal {
	var executable, macro, double string

	for _, att := range in.Email.Attachments {
		name := att.Filename
		filename := strings.ToLower(name)
		ext := path.Ext(filename)

		if executable == "" && slices.Contains(executableExtensions, ext) {
			executable = name
		}
		if macro == "" && slices.Contains(macroExtensions, ext) {
			macro = name
		}
		inner := path.Ext(strings.TrimSuffix(filename, ext))
		if double == "" && inner != "" && inner != ext && slices.Contains(decoyExtensions, inner) {
			double = name
		}
	}

	var signals []Signal
	if executable != "" {
		signals = append(signals, Signal{
			Type:      "HIGH_RISK_ATTACHMENT",
			Points:    25,
			Indicator: fmt.Sprintf("High-risk attachment type: %s", executable),
		})
	}
	if macro != "" {
		signals = append(signals, Signal{
			Type:      "MACRO_ATTACHMENT",
			Points:    15,
			Indicator: fmt.Sprintf("Macro-capable office attachment: %s", macro),
		})
	}
	if double != "" {
		signals = append(signals, Signal{
			Type:      "SUSPICIOUS_ATTACHMENT_NAME",
			Points:    15,
			Indicator: fmt.Sprintf("Suspicious attachment name (double extension): %s", double),
		})
	}
	return signals
}
