package injection

import (
	"log/slog"
	"strings"

	"billtool/internal/domain"
)

// DefaultPatterns are high-risk phrases (case-insensitive). Billing data is
// customer-entered, so notes, memos and names can carry them into a tool
// response read by a model.
var DefaultPatterns = []string{
	"ignore previous",
	"ignore all previous",
	"disregard the above",
	"system prompt",
	"simulated mode",
	"you are now",
}

// ScanResult holds the result of a prompt-injection scan.
type ScanResult struct {
	Detected bool     // true if any high-risk pattern was found
	Patterns []string // matched phrases
}

// Scanner matches text against a fixed phrase list.
type Scanner struct {
	patterns []string
}

// NewScanner returns a Scanner for patterns, or DefaultPatterns when none
// are given. Blank patterns are ignored.
func NewScanner(patterns ...string) *Scanner {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	s := &Scanner{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			s.patterns = append(s.patterns, p)
		}
	}
	return s
}

var defaultScanner = NewScanner()

// Scan checks text against DefaultPatterns.
func Scan(text string) ScanResult { return defaultScanner.Scan(text) }

// Scan checks text for the scanner's phrases.
func (s *Scanner) Scan(text string) ScanResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ScanResult{}
	}
	lower := strings.ToLower(text)
	var matched []string
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return ScanResult{}
	}
	return ScanResult{Detected: true, Patterns: matched}
}

// ScanResponse scans every text block of r.
func (s *Scanner) ScanResponse(r domain.Response) ScanResult {
	var combined strings.Builder
	for _, b := range r.Content {
		if b.Type == domain.ContentText {
			combined.WriteString(b.Text)
			combined.WriteString("\n")
		}
	}
	return s.Scan(combined.String())
}

// LogIfDetected scans r and logs a warning with the matched phrases when
// something is found. A nil logger uses slog.Default().
func (s *Scanner) LogIfDetected(tool string, r domain.Response, logger *slog.Logger) ScanResult {
	res := s.ScanResponse(r)
	if !res.Detected {
		return res
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("prompt injection may be present in tool response", "tool", tool, "matched", res.Patterns)
	return res
}
