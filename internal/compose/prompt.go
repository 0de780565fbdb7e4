package compose

import (
	"fmt"
	"strings"

	"github.com/mailscribe/mailscribe/internal/guideline"
	"github.com/mailscribe/mailscribe/internal/mail"
)

// defaultInstruction is used when the caller supplies no instruction override.
const defaultInstruction = "Please write a thoughtful, concise and polite reply. " +
	"Keep it focused - aim for 2-3 short paragraphs maximum. Be warm but efficient. " +
	"Only provide the email body text, no subject line or signatures. " +
	"Keep your response under 200 words and get straight to the point."

// BuildReplyPrompt assembles the single prompt sent to the text-generation
// service: the original message, the guideline section only when a guideline
// is present, and the instruction (override or default).
func BuildReplyPrompt(msg *mail.Message, g *guideline.Guideline, instruction string) string {
	var b strings.Builder

	b.WriteString("Generate a professional and helpful email reply to the following email:\n\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n\n", msg.Subject)
	fmt.Fprintf(&b, "Email content:\n%s\n\n", msg.Body)

	if g != nil && g.Text != "" {
		b.WriteString("IMPORTANT: Follow these email writing guidelines:\n\n")
		b.WriteString(g.Text)
		b.WriteString("\n\n")
	}

	if instruction = strings.TrimSpace(instruction); instruction != "" {
		b.WriteString(instruction)
	} else {
		b.WriteString(defaultInstruction)
	}
	return b.String()
}

// preamblePrefixes match the meta-commentary line some completions start
// with ("Here is a draft reply:", "Here's the reply:", ...).
var preamblePrefixes = []string{"here is ", "here's "}

// StripWrapping removes wrapping the generation service may add around the
// reply body: surrounding whitespace, code fences, and a leading
// "Here is ...:" preamble line. The result is reply body content only.
func StripWrapping(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if end := strings.LastIndex(text, "```"); end > 0 {
			inner := text[3:end]
			// Drop an optional language tag on the opening fence.
			if nl := strings.Index(inner, "\n"); nl >= 0 {
				inner = inner[nl+1:]
			}
			text = strings.TrimSpace(inner)
		}
	}

	if nl := strings.Index(text, "\n"); nl > 0 {
		first := strings.TrimSpace(text[:nl])
		lower := strings.ToLower(first)
		for _, prefix := range preamblePrefixes {
			if strings.HasPrefix(lower, prefix) && strings.HasSuffix(first, ":") {
				text = strings.TrimSpace(text[nl+1:])
				break
			}
		}
	}
	return text
}
