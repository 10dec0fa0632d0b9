package authoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stwalsh4118/vigil/internal/models"
)

const contentRefLength = 11

var (
	bareRefPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	urlRefPattern  = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)
	isoDuration    = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9]`)
	refSeparators  = regexp.MustCompile(`[\s,]+`)
	wordStart      = regexp.MustCompile(`\b\w`)
)

// ExtractContentRef returns the content reference named by input: an
// 11-character id as-is, the id embedded in a share, watch or embed URL,
// or any other http(s) URL unchanged
func ExtractContentRef(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if bareRefPattern.MatchString(input) {
		return input, true
	}
	if m := urlRefPattern.FindStringSubmatch(input); m != nil && len(m[2]) == contentRefLength {
		return m[2], true
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return input, true
	}
	return "", false
}

// SplitRefs splits a free-form list of ids or URLs separated by commas or whitespace
func SplitRefs(input string) []string {
	var out []string
	for _, part := range refSeparators.Split(input, -1) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseISODuration converts a PT#H#M#S duration to seconds
func ParseISODuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "PT" {
		return 0, false
	}

	total := 0
	for i, unit := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		total += n * unit
	}
	return total, true
}

// PlaylistIDFromName derives a playlist id: lowercase with every character
// outside [a-z0-9] replaced by an underscore
func PlaylistIDFromName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return nonSlugChars.ReplaceAllString(name, "_")
}

// PlaylistDisplayName turns a playlist id back into a readable name:
// underscores become spaces and every word is capitalised
func PlaylistDisplayName(id string) string {
	if id == models.DefaultPlaylistID {
		return models.DefaultPlaylistName
	}
	return wordStart.ReplaceAllStringFunc(strings.ReplaceAll(id, "_", " "), strings.ToUpper)
}
