package citation

import (
	"math"
	"reflect"
	"strconv"
	"testing"

	"github.com/hyperjump/ronbun/internal/models"
)

func groundingOn(pages ...int) []*models.RetrievedChunk {
	out := make([]*models.RetrievedChunk, len(pages))
	for i, p := range pages {
		out[i] = &models.RetrievedChunk{
			Chunk: &models.Chunk{ID: "c", PaperID: "p", Page: p},
			Score: 0.9,
			Rank:  i + 1,
		}
	}
	return out
}

func TestExtract(t *testing.T) {
	text := "Results appear on [Page 3], methods on [Page 12]. See also [Page 3]."
	citations := Extract(text)
	if len(citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(citations))
	}
	wantPages := []int{3, 12, 3}
	for i, c := range citations {
		if c.Page != wantPages[i] {
			t.Errorf("citation %d Page=%d, want %d", i, c.Page, wantPages[i])
		}
		if got := text[c.Start:c.End]; got != "[Page "+strconv.Itoa(c.Page)+"]" {
			t.Errorf("citation %d span=%q", i, got)
		}
	}
}

func TestExtractNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"No markers here.",
		"Mentioned on Page 7 without brackets.",
		"[page 7] lowercase does not count",
		"[Page ] missing number",
	} {
		if got := Extract(text); got != nil {
			t.Errorf("Extract(%q) = %v, want nil", text, got)
		}
	}
}

func TestExtractOutOfRangeVerbatim(t *testing.T) {
	citations := Extract("Claimed on [Page 9999].")
	if len(citations) != 1 || citations[0].Page != 9999 {
		t.Fatalf("expected verbatim page 9999, got %v", citations)
	}
}

func TestPages(t *testing.T) {
	citations := []models.Citation{{Page: 12}, {Page: 3}, {Page: 12}, {Page: 5}}
	got := Pages(citations)
	if !reflect.DeepEqual(got, []int{3, 5, 12}) {
		t.Errorf("Pages=%v, want [3 5 12]", got)
	}
	if Pages(nil) != nil {
		t.Error("Pages(nil) should be nil")
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		grounding []*models.RetrievedChunk
		want      float64
	}{
		{
			name:      "one of three grounding pages cited",
			text:      "The method is described [Page 3] and data shown [Page 3]",
			grounding: groundingOn(3, 5, 7),
			want:      0.3 + 0.7/3.0,
		},
		{
			name:      "no citations",
			text:      "An answer without any markers.",
			grounding: groundingOn(1, 2),
			want:      0.3,
		},
		{
			name:      "all grounding pages cited",
			text:      "[Page 1] and [Page 2] agree.",
			grounding: groundingOn(1, 2),
			want:      1.0,
		},
		{
			name:      "over-citing stays at the ceiling",
			text:      "[Page 1] [Page 2] [Page 40] [Page 41]",
			grounding: groundingOn(1, 2),
			want:      1.0,
		},
		{
			name:      "citations disjoint from grounding",
			text:      "See [Page 9].",
			grounding: groundingOn(1, 2, 3),
			want:      0.3,
		},
		{
			name:      "empty grounding",
			text:      "See [Page 1].",
			grounding: nil,
			want:      0.3,
		},
		{
			name:      "duplicate grounding pages count once",
			text:      "See [Page 4].",
			grounding: groundingOn(4, 4, 8),
			want:      0.3 + 0.7/2.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cited := Pages(Extract(tt.text))
			got := Confidence(cited, tt.grounding)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Confidence=%v, want %v", got, tt.want)
			}
		})
	}
}
