// Package compare builds multi-paper comparison reports and similarity matrices.
package compare

import "strings"

// SectionKeys lists the six report sections in order.
var SectionKeys = []string{
	"research_objectives",
	"methodology",
	"findings",
	"strengths_weaknesses",
	"research_gaps",
	"recommendations",
}

// sectionTitles are the headings the prompt asks the model to emit, in
// report order.
var sectionTitles = []struct {
	key   string
	title string
}{
	{"research_objectives", "Research Objectives"},
	{"methodology", "Methodology"},
	{"findings", "Findings"},
	{"strengths_weaknesses", "Strengths and Weaknesses"},
	{"research_gaps", "Research Gaps"},
	{"recommendations", "Recommendations"},
}

// SectionTitle returns the display heading for a section key, or the key
// itself when unknown.
func SectionTitle(key string) string {
	for _, st := range sectionTitles {
		if st.key == key {
			return st.title
		}
	}
	return key
}

// sectionAliases maps normalized heading text to section keys. Models restate
// headings loosely, so common variants are accepted alongside the canonical
// titles.
var sectionAliases = map[string]string{
	"research objectives":            "research_objectives",
	"research objective":             "research_objectives",
	"research objectives comparison": "research_objectives",
	"objectives":                     "research_objectives",
	"methodology":                    "methodology",
	"methodologies":                  "methodology",
	"methods":                        "methodology",
	"findings":                       "findings",
	"key findings":                   "findings",
	"main findings":                  "findings",
	// "/" normalizes to " and ", so "Findings Agreement/Disagreement"
	// arrives as the first form below.
	"findings agreement and disagreement":     "findings",
	"key findings agreement and disagreement": "findings",
	"strengths and weaknesses":                "strengths_weaknesses",
	"strengths weaknesses":                    "strengths_weaknesses",
	"research gaps":                           "research_gaps",
	"research gap":                            "research_gaps",
	"research gap analysis":                   "research_gaps",
	"gaps":                                    "research_gaps",
	"recommendations":                         "recommendations",
	"recommendation":                          "recommendations",
}

// ParseSections splits a generated report into the six sections. Headings are
// matched case-insensitively and tolerate markdown markers, numbering, and
// "Heading: content" on one line. Text before the first recognized heading is
// dropped. Every key in SectionKeys is present in the result; sections the
// model omitted map to the empty string.
func ParseSections(text string) map[string]string {
	sections := make(map[string]string, len(SectionKeys))
	for _, key := range SectionKeys {
		sections[key] = ""
	}

	var current string
	var buf strings.Builder
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if key, rest, ok := matchHeading(line); ok {
			flush()
			current = key
			if rest != "" {
				buf.WriteString(rest)
				buf.WriteString("\n")
			}
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return sections
}

// matchHeading reports whether line is a section heading. When the heading
// carries content on the same line ("**Methodology:** both papers ..."), rest
// holds that content.
func matchHeading(line string) (key, rest string, ok bool) {
	cleaned := stripLeadingMarkers(line)
	if cleaned == "" {
		return "", "", false
	}

	if key, ok := sectionAliases[normalizeHeading(cleaned)]; ok {
		return key, "", true
	}

	if idx := strings.Index(cleaned, ":"); idx > 0 {
		if key, ok := sectionAliases[normalizeHeading(cleaned[:idx])]; ok {
			return key, strings.TrimLeft(cleaned[idx+1:], "*: \t"), true
		}
	}
	return "", "", false
}

// stripLeadingMarkers removes markdown and list prefixes: #, *, -, digits
// with . or ) and surrounding whitespace.
func stripLeadingMarkers(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#*- \t")
	for len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
		s = s[1:]
		s = strings.TrimLeft(s, ".) \t")
	}
	return strings.TrimSpace(s)
}

// normalizeHeading lowercases, folds & and / into "and", strips trailing
// punctuation, and collapses whitespace so heading variants compare equal.
func normalizeHeading(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ":*# \t")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "/", " and ")
	return strings.Join(strings.Fields(s), " ")
}
