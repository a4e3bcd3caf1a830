package textconv

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions   = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	speechPolicy = bluemonday.NewPolicy()
	stripPolicy  = bluemonday.StrictPolicy()
)

func init() {
	// block structure only; inline markup would be read out as asterisks
	speechPolicy.AllowElements("p", "br", "ul", "ol", "li")
}

// ToSpeech flattens a markdown reply into a single line suitable for
// text-to-speech. Headings, emphasis, links and code fences are reduced to
// their text.
func ToSpeech(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.Render(p.Parse([]byte(md)), renderer)

	sanitized := speechPolicy.SanitizeBytes(rendered)
	text, err := html2text.FromString(string(sanitized), html2text.Options{OmitLinks: true})
	if err != nil {
		text = stripPolicy.Sanitize(string(sanitized))
	}
	text = strings.NewReplacer("* ", "", "\u00a0", " ").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
