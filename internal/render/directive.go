package render

import (
	"log/slog"
	"regexp"
	"strings"
)

// SegmentKind classifies a piece of rendered output.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
)

// Segment is either a run of plain text or a resolved card image.
type Segment struct {
	Kind    SegmentKind
	Content string // SegmentText
	URL     string // SegmentImage
}

// CardLookup resolves a card name to an image URL.
type CardLookup interface {
	Lookup(name string) (string, bool)
}

// imageDirective matches inline card directives such as "[IMAGE: EL LOCO]".
var imageDirective = regexp.MustCompile(`(?i)\[\s*IMAGE\s*:\s*([^\]]*?)\s*\]`)

// ParseDirectives splits text into plain-text and image segments in order of
// appearance. The text before every directive becomes a text segment, even
// when empty. Directives naming unknown cards are removed without producing a
// segment. A nil lookup resolves nothing.
func ParseDirectives(text string, cards CardLookup, logger *slog.Logger) []Segment {
	if logger == nil {
		logger = slog.Default()
	}

	matches := imageDirective.FindAllStringSubmatchIndex(text, -1)
	segments := make([]Segment, 0, 2*len(matches)+1)

	last := 0
	for _, m := range matches {
		segments = append(segments, Segment{Kind: SegmentText, Content: text[last:m[0]]})
		last = m[1]

		name := strings.TrimSpace(text[m[2]:m[3]])
		var url string
		var ok bool
		if cards != nil {
			url, ok = cards.Lookup(name)
		}
		if !ok {
			logger.Warn("unresolved card directive", "card", name)
			continue
		}
		segments = append(segments, Segment{Kind: SegmentImage, URL: url})
	}
	segments = append(segments, Segment{Kind: SegmentText, Content: text[last:]})

	return segments
}
