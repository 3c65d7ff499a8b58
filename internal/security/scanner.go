// ABOUTME: Heuristic pre-filter for obviously malicious paths and query values.
// ABOUTME: Cheap ordered pattern checks, not a WAF — false negatives are acceptable.
package security

import (
	"net/url"
	"regexp"
)

// ScanResult reports whether content matched a malicious heuristic.
type ScanResult struct {
	Suspicious bool
	Pattern    string // name of the first matching heuristic
}

type contentCheck struct {
	name string
	re   *regexp.Regexp
}

// ContentScanner applies a fixed, ordered list of heuristics to the decoded
// request path and every query value. The first match short-circuits.
//
// The patterns are deliberately narrow: ordinary punctuation in titles,
// search strings and slugs must never trip them.
type ContentScanner struct {
	checks []contentCheck
}

// NewContentScanner builds the scanner with its built-in heuristics.
func NewContentScanner() *ContentScanner {
	return &ContentScanner{
		checks: []contentCheck{
			{name: "path_traversal", re: regexp.MustCompile(`\.\.[/\\]`)},
			{name: "script_tag", re: regexp.MustCompile(`(?i)<\s*script\b`)},
			{name: "javascript_uri", re: regexp.MustCompile(`(?i)javascript\s*:`)},
			{name: "event_handler", re: regexp.MustCompile(`(?i)\bon(?:abort|blur|click|error|focus|load|mouse\w+|submit)\s*=`)},
		},
	}
}

// Scan checks path and each query value in order. Keys are not scanned:
// attacker-controlled keys without values cannot reach interpreters here,
// and scanning them doubles the false-positive surface.
func (s *ContentScanner) Scan(path string, query url.Values) ScanResult {
	for _, c := range s.checks {
		if c.re.MatchString(path) {
			return ScanResult{Suspicious: true, Pattern: c.name}
		}
	}
	for _, vals := range query {
		for _, v := range vals {
			for _, c := range s.checks {
				if c.re.MatchString(v) {
					return ScanResult{Suspicious: true, Pattern: c.name}
				}
			}
		}
	}
	return ScanResult{}
}
