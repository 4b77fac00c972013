package classify

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLTitle returns the text of the first <title> element in doc.
func HTMLTitle(doc string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.Title {
				continue
			}
			var sb strings.Builder
			for {
				tt := z.Next()
				if tt == html.TextToken {
					sb.Write(z.Text())
					continue
				}
				// End tag, EOF or anything else closes the title.
				return strings.TrimSpace(sb.String()), true
			}
		}
	}
}
