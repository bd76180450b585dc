package interactions

import (
	"strings"
	"unicode"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// Phrases are checked in order; the first category with a match wins.
var sentimentPhrases = []struct {
	sentiment types.Sentiment
	phrases   []string
}{
	{types.SentimentYes, []string{"i support", "yes", "+1"}},
	{types.SentimentNo, []string{"i oppose", "no", "-1"}},
	{types.SentimentAbstain, []string{"abstain", "not sure"}},
}

// GuessSentiment is a keyword heuristic over a comment. It is informational
// only and never counted as a vote. Phrases match whole words, so "know"
// does not match "no".
func GuessSentiment(text string) (types.Sentiment, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '-' && r != '\''
	})
	if len(words) == 0 {
		return "", false
	}
	padded := " " + strings.Join(words, " ") + " "
	for _, cat := range sentimentPhrases {
		for _, phrase := range cat.phrases {
			if strings.Contains(padded, " "+phrase+" ") {
				return cat.sentiment, true
			}
		}
	}
	return "", false
}
