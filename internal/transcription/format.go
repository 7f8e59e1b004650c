package transcription

import (
	"fmt"
	"sort"
	"strings"
)

// FormatTranscript derives the flat transcript string persisted alongside the
// raw provider payload. Speaker-attributed utterances are rendered one per
// line in chronological order; without utterances the flat text field is
// used. Output is deterministic for identical input.
func FormatTranscript(result *JobResult) string {
	if result == nil {
		return ""
	}
	if len(result.Utterances) == 0 {
		return strings.TrimSpace(result.Text)
	}

	utterances := make([]Utterance, len(result.Utterances))
	copy(utterances, result.Utterances)
	sort.SliceStable(utterances, func(i, j int) bool {
		return utterances[i].Start < utterances[j].Start
	})

	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(u.Speaker)
		if speaker == "" {
			lines = append(lines, text)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, text))
	}
	return strings.Join(lines, "\n")
}
