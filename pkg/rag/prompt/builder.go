package prompt

import (
	"strings"
)

// BuildDanmaku assembles the final prompt for one viewer message.
// When retrieval produced nothing the message passes through verbatim; this
// is the only prompt-construction rule, no other rewriting happens here.
func BuildDanmaku(userMessage, knowledge string) string {
	if knowledge == "" {
		return userMessage
	}

	var b strings.Builder
	b.WriteString("<background_knowledge>\n")
	b.WriteString(knowledge)
	b.WriteString("\n</background_knowledge>\n\n")
	b.WriteString("Viewer danmaku: ")
	b.WriteString(userMessage)
	return b.String()
}
