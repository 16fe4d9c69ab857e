package extraction_test

import (
	"testing"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "sentences",
			text: "I live in Seattle. I prefer concise answers.",
			want: []string{"I live in Seattle.", "I prefer concise answers."},
		},
		{
			name: "headings and bullets",
			text: "# About me\n\n- Works at Acme\n- Has two cats\n\n## Style\n* Keep it short!   Skip the fluff",
			want: []string{"Works at Acme", "Has two cats", "Keep it short!", "Skip the fluff"},
		},
		{
			name: "wrapped paragraph",
			text: "I grew up in Busan\nand moved to Seattle in 2019. 2020 was rough?  Yes.",
			want: []string{"I grew up in Busan and moved to Seattle in 2019.", "2020 was rough?", "Yes."},
		},
		{
			name: "abbreviations stay whole",
			text: "Likes warm drinks, e.g. tea and cocoa.",
			want: []string{"Likes warm drinks, e.g. tea and cocoa."},
		},
		{
			name: "numbered list and rules",
			text: "1. Uses Neovim\n2) Drinks tea\n---\nok",
			want: []string{"Uses Neovim", "Drinks tea"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extraction.Segment(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentRejectsEmptyOrMalformed(t *testing.T) {
	for _, text := range []string{"", "   \n\n", "# Only a heading\n---", "a.", string([]byte{0xff, 0xfe})} {
		_, err := extraction.Segment(text)
		assert.ErrorIs(t, err, errors.ErrValidation, "%q", text)
	}
}
