// internal/service/substitution.go
package service

import (
	"strings"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// Placeholder samples used when no recipient is known or an attribute is empty.
const (
	PlaceholderName    = "John Doe"
	PlaceholderEmail   = "john@example.com"
	PlaceholderPhone   = "+1234567890"
	PlaceholderCompany = "Acme Corp"
)

var tokenPlaceholders = map[string]string{
	"name":    PlaceholderName,
	"email":   PlaceholderEmail,
	"phone":   PlaceholderPhone,
	"company": PlaceholderCompany,
}

func recipientValue(token string, r *model.Recipient) string {
	if r == nil {
		return ""
	}
	switch token {
	case "name":
		return r.Name
	case "email":
		return r.Email
	case "phone":
		return r.Phone
	case "company":
		return r.Company
	}
	return ""
}

// Render substitutes {{name}}, {{email}}, {{phone}} and {{company}} in a single
// left-to-right pass. Substituted values are never rescanned, so braces inside
// recipient data stay literal. Unknown tokens are kept verbatim.
//
// Rendering the output again is a no-op only while recipient values cannot form
// a token with the text around them. A name of "{" in front of "{email}}" yields
// "{{email}}", which a second pass would substitute. The output is final and
// must not be rendered twice.
func Render(template string, recipient *model.Recipient) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])

		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			b.WriteString(rest[start:])
			return b.String()
		}
		token := strings.TrimSpace(rest[start+2 : start+2+end])
		placeholder, known := tokenPlaceholders[token]
		if !known {
			// emit one brace and rescan so "{{{{name}}}}" still finds the inner token
			b.WriteByte(rest[start])
			rest = rest[start+1:]
			continue
		}

		value := strings.TrimSpace(recipientValue(token, recipient))
		if value == "" {
			value = placeholder
		}
		b.WriteString(value)
		rest = rest[start+2+end+2:]
	}
}

// Tokens lists the recognised tokens present in template, in order of first use.
func Tokens(template string) []string {
	var out []string
	seen := map[string]bool{}
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			return out
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			return out
		}
		token := strings.TrimSpace(rest[start+2 : start+2+end])
		if _, known := tokenPlaceholders[token]; known {
			if !seen[token] {
				seen[token] = true
				out = append(out, token)
			}
			rest = rest[start+2+end+2:]
			continue
		}
		rest = rest[start+1:]
	}
}

// RenderContent personalizes a draft's subject and body for one target.
// A nil recipient renders the preview/broadcast form.
func RenderContent(draft model.ContentDraft, recipient *model.Recipient) model.RenderedContent {
	out := model.RenderedContent{
		Channel:     draft.Channel,
		Subject:     Render(draft.Subject, recipient),
		Body:        Render(draft.Body, recipient),
		MediaAssets: model.CloneMedia(draft.MediaAssets),
	}
	if draft.Thumbnail != nil {
		thumb := *draft.Thumbnail
		out.Thumbnail = &thumb
	}
	return out
}
