package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus(t *testing.T) {
	corpus := BuildCorpus(12)
	if len(corpus.Papers) != 12 {
		t.Fatalf("papers = %d, want 12", len(corpus.Papers))
	}
	if len(corpus.Cases) != 12 {
		t.Fatalf("cases = %d, want 12", len(corpus.Cases))
	}

	seenFilenames := make(map[string]bool)
	for i, p := range corpus.Papers {
		if seenFilenames[p.Filename] {
			t.Errorf("paper %d: duplicate filename %q", i, p.Filename)
		}
		seenFilenames[p.Filename] = true

		if len(p.Pages) < 3 {
			t.Errorf("paper %d: only %d pages", i, len(p.Pages))
		}
		if p.SignaturePage < 1 || p.SignaturePage > len(p.Pages) {
			t.Fatalf("paper %d: signature page %d out of range", i, p.SignaturePage)
		}
		if !strings.Contains(p.Pages[p.SignaturePage-1].Text, p.Signature) {
			t.Errorf("paper %d: signature %q not on page %d", i, p.Signature, p.SignaturePage)
		}
		for j, other := range corpus.Papers {
			if i == j {
				continue
			}
			for _, page := range other.Pages {
				if strings.Contains(page.Text, p.Signature) {
					t.Errorf("signature of paper %d leaked into paper %d", i, j)
				}
			}
		}
	}

	for i, c := range corpus.Cases {
		if c.PaperIndex < 0 || c.PaperIndex >= len(corpus.Papers) {
			t.Errorf("case %d: paper index %d out of range", i, c.PaperIndex)
		}
		if c.Question == "" {
			t.Errorf("case %d: empty question", i)
		}
	}
}

func TestBuildCorpus_DefaultSize(t *testing.T) {
	corpus := BuildCorpus(0)
	if len(corpus.Papers) == 0 {
		t.Fatal("default corpus is empty")
	}
}
