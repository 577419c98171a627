package corpus

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/models"
)

const (
	// Maximum character size for a single snippet
	maxSnippetSize = 400
	// Minimum size below which a passage is merged into the next one
	minSnippetSize = 40
)

// Resume section headings commonly found in PDF exports. A short line
// matching one of these starts a new section.
var sectionHeadingRe = regexp.MustCompile(`(?i)^(experience|work experience|education|projects|publications|patents|publications & patents|skills|technical skills|contact|summary|awards|talks)\s*$`)

var (
	sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)
	slugRe        = regexp.MustCompile(`[^a-z0-9]+`)
)

// FromPDF extracts a snippet corpus from a resume PDF. Text is pulled per
// page, grouped under detected section headings, and split into short
// passages suitable for embedding.
func FromPDF(path string) ([]models.Snippet, error) {
	text, err := extractText(path)
	if err != nil {
		return nil, err
	}

	text = normalizeWhitespace(text)

	var snippets []models.Snippet
	section := "General"
	counter := make(map[string]int)

	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		if heading, ok := detectHeading(block); ok {
			section = heading
			continue
		}

		for _, passage := range splitPassages(block) {
			slug := sectionSlug(section)
			id := fmt.Sprintf("%s-%d", slug, counter[slug])
			counter[slug]++

			snippets = append(snippets, models.Snippet{
				ID:      id,
				Section: section,
				Text:    passage,
			})
		}
	}

	if len(snippets) == 0 {
		return nil, goerr.Wrap(ErrInvalidCorpus, "no text extracted from PDF", goerr.V("path", path))
	}

	return snippets, nil
}

// extractText extracts plain text from a PDF file
func extractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open PDF", goerr.V("path", path))
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", goerr.Wrap(err, "failed to extract plain text")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", goerr.Wrap(err, "failed to read extracted text")
	}

	return buf.String(), nil
}

// normalizeWhitespace collapses runs of spaces and keeps paragraph breaks
func normalizeWhitespace(text string) string {
	spaceRe := regexp.MustCompile(`[ \t]+`)
	text = spaceRe.ReplaceAllString(text, " ")

	paraSepRe := regexp.MustCompile(`\n\s*\n+`)
	text = paraSepRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// detectHeading reports whether a block is a section heading
func detectHeading(block string) (string, bool) {
	if strings.Contains(block, "\n") || len(block) > 60 {
		return "", false
	}
	if sectionHeadingRe.MatchString(block) {
		return strings.TrimSpace(block), true
	}
	return "", false
}

// splitPassages breaks a text block into passages of one to a few
// sentences, each below maxSnippetSize characters
func splitPassages(block string) []string {
	block = strings.ReplaceAll(block, "\n", " ")

	// Split on sentence boundaries while keeping the terminator.
	marked := sentenceEndRe.ReplaceAllString(block, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var passages []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); len(s) >= minSnippetSize {
			passages = append(passages, s)
		}
		current.Reset()
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(s) > maxSnippetSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	flush()

	// A block too short to pass the minimum still becomes one passage
	// rather than being dropped entirely.
	if len(passages) == 0 {
		if s := strings.TrimSpace(block); s != "" {
			passages = append(passages, s)
		}
	}

	return passages
}

// sectionSlug derives a stable id prefix from a section label
func sectionSlug(section string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(section), "-")
	return strings.Trim(slug, "-")
}
