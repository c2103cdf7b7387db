package citation

import (
	"strings"

	"support-agent/internal/message"
)

// publicSourcePrefixes name content origins that are safe to expose to
// visitors even though they are not site paths.
var publicSourcePrefixes = []string{
	"content/",
	"blog/",
	"https://",
}

const adminPrefix = "/admin"

// Aggregate deduplicates citations by id, keeping the highest-scoring
// occurrence, and drops sources a visitor should never see. Output order
// is first-seen order of the surviving ids.
func Aggregate(in []message.Citation) []message.Citation {
	best := make(map[string]message.Citation, len(in))
	order := make([]string, 0, len(in))
	for _, c := range in {
		if c.ID == "" {
			continue
		}
		prev, seen := best[c.ID]
		if !seen {
			best[c.ID] = c
			order = append(order, c.ID)
			continue
		}
		if c.Score > prev.Score {
			best[c.ID] = c
		}
	}

	out := make([]message.Citation, 0, len(order))
	for _, id := range order {
		c := best[id]
		if !publicSource(c.Source) {
			continue
		}
		// Snippets stay internal; only locator and score leave the service.
		c.Content = ""
		out = append(out, c)
	}
	return out
}

func publicSource(source string) bool {
	source = strings.TrimSpace(source)
	if source == "" {
		return false
	}
	if strings.HasPrefix(source, "/") {
		if source == adminPrefix || strings.HasPrefix(source, adminPrefix+"/") {
			return false
		}
		return true
	}
	for _, prefix := range publicSourcePrefixes {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}
