package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// containerClassTokens mark the element most likely to hold the actual
// receipt body in marketing-heavy HTML emails.
var containerClassTokens = []string{
	"content", "main", "body", "receipt", "invoice", "email-body",
}

// htmlToText renders HTML email markup as plain text. It parses the
// document, drops script/style/meta/link subtrees, and prefers the text
// of a recognizable content container over the whole page. When the
// markup does not parse it falls back to a crude tag stripper.
func htmlToText(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return stripTags(markup)
	}
	pruneNonContent(root)

	if container := findContentContainer(root); container != nil {
		if text := renderText(container); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return renderText(root)
}

func pruneNonContent(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.ElementNode {
			switch child.Data {
			case "script", "style", "meta", "link":
				n.RemoveChild(child)
				child = next
				continue
			}
		}
		pruneNonContent(child)
		child = next
	}
}

func findContentContainer(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "div", "td", "table":
			class := strings.ToLower(attrValue(n, "class"))
			for _, token := range containerClassTokens {
				if strings.Contains(class, token) {
					return n
				}
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findContentContainer(child); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// blockElements get a newline after their text so labeled fields stay
// on their own lines.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "td": true,
	"th": true, "li": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "table": true,
}

func renderText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return b.String()
}

var (
	scriptStyleRE = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagRE    = regexp.MustCompile(`(?i)</?(p|div|br|tr|td|th|li|h[1-4]|table)[^>]*>`)
	anyTagRE      = regexp.MustCompile(`<[^>]+>`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// stripTags is the last-resort converter for markup the parser chokes
// on.
func stripTags(markup string) string {
	text := scriptStyleRE.ReplaceAllString(markup, "")
	text = blockTagRE.ReplaceAllString(text, "\n")
	text = anyTagRE.ReplaceAllString(text, "")
	return entityReplacer.Replace(text)
}
