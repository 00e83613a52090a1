// ABOUTME: Markdown rendering for outgoing Matrix messages
// ABOUTME: Produces the HTML formatted_body sent alongside the plain text body

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"maunium.net/go/mautrix/event"
)

// markdown keeps single newlines as line breaks so menu lines stay on their own rows.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderHTML converts markdown text to HTML. It returns "" when rendering fails.
func renderHTML(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// textContent builds the message content for a reply. The formatted body is
// omitted when it adds nothing over the plain body.
func textContent(text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}

	formatted := renderHTML(text)
	if formatted == "" || formatted == "<p>"+text+"</p>" {
		return content
	}
	content.Format = event.FormatHTML
	content.FormattedBody = formatted
	return content
}
