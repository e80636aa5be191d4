package cliproc

import (
	"strings"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor strips known secret values (access tokens, mostly) out of
// captured CLI output before it lands in logs or error messages. Output is
// only ever redacted after capture completes, so this works on whole
// strings rather than a stream.
type Redactor struct {
	matcher aho.AhoCorasick
	armed   bool
}

// NewRedactor builds a redactor for every non-empty secret. With no secrets
// it passes text through untouched.
func NewRedactor(secrets []string) *Redactor {
	var patterns []string
	for _, s := range secrets {
		if s != "" {
			patterns = append(patterns, s)
		}
	}
	if len(patterns) == 0 {
		return &Redactor{}
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		MatchKind: aho.LeftMostLongestMatch,
	})
	return &Redactor{matcher: builder.Build(patterns), armed: true}
}

// Redact replaces every secret occurrence with a placeholder.
func (r *Redactor) Redact(text string) string {
	if !r.armed || text == "" {
		return text
	}
	matches := r.matcher.FindAll(text)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	pos := 0
	for _, m := range matches {
		out.WriteString(text[pos:m.Start()])
		out.WriteString(redactedPlaceholder)
		pos = m.End()
	}
	out.WriteString(text[pos:])
	return out.String()
}
