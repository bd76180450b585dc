package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentiment(t *testing.T) {
	for in, want := range map[string]Sentiment{
		"yes":       SentimentYes,
		" No ":      SentimentNo,
		"ABSTAIN":   SentimentAbstain,
		"Abstain\n": SentimentAbstain,
	} {
		got, ok := ParseSentiment(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "maybe", "y", "yes please"} {
		_, ok := ParseSentiment(in)
		assert.False(t, ok, in)
	}
}

func TestParseProposalStatus(t *testing.T) {
	got, ok := ParseProposalStatus("active")
	assert.True(t, ok)
	assert.Equal(t, StatusActive, got)

	got, ok = ParseProposalStatus(" Enacted ")
	assert.True(t, ok)
	assert.Equal(t, StatusEnacted, got)

	_, ok = ParseProposalStatus("DROPPED")
	assert.False(t, ok)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "ncl_records", NCLRecord{}.TableName())
	assert.Len(t, AllModels, 8)
}
