package survey

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainText = bluemonday.StrictPolicy()

// CleanText strips markup from user-supplied free text; titles and names are
// relayed verbatim into chat messages. Entities are decoded before sanitizing
// so escaped tags are stripped too.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(html.UnescapeString(s))))
}
