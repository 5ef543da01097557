package content

import (
	"regexp"
	"strings"
)

var mp3Pattern = regexp.MustCompile(`https?://[^\s"'<>\\]+\.mp3`)

// ExtractMP3URLs scans raw script text for MP3 URLs. Results keep first-seen
// order across all scripts and contain no duplicates.
func ExtractMP3URLs(scripts []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, script := range scripts {
		// JSON encoders may escape forward slashes.
		text := strings.ReplaceAll(script, `\/`, `/`)
		for _, u := range mp3Pattern.FindAllString(text, -1) {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
