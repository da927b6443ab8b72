package download

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/e5r/dev/pkg/util"
)

const regexPrefix = "regex:"

// URLReplacer rewrites download URLs for mirrors and enterprise proxies
type URLReplacer struct {
	replacements map[string]string
	patterns     []string
}

// NewURLReplacer creates a new URL replacer with the given replacements.
// Plain patterns are tried before "regex:" patterns, each group in lexical order.
func NewURLReplacer(replacements map[string]string) *URLReplacer {
	patterns := make([]string, 0, len(replacements))
	for pattern := range replacements {
		patterns = append(patterns, pattern)
	}
	sort.Slice(patterns, func(i, j int) bool {
		iIsRegex := strings.HasPrefix(patterns[i], regexPrefix)
		jIsRegex := strings.HasPrefix(patterns[j], regexPrefix)
		if iIsRegex != jIsRegex {
			return !iIsRegex
		}
		return patterns[i] < patterns[j]
	})
	return &URLReplacer{replacements: replacements, patterns: patterns}
}

// Apply returns the URL rewritten by the first matching pattern
func (r *URLReplacer) Apply(originalURL string) string {
	for _, pattern := range r.patterns {
		newURL := r.applyOne(originalURL, pattern, r.replacements[pattern])
		if newURL != originalURL {
			util.LogVerbose("URL replacement applied: %s -> %s (pattern: %s)", originalURL, newURL, pattern)
			return newURL
		}
	}
	return originalURL
}

func (r *URLReplacer) applyOne(url, pattern, replacement string) string {
	if !strings.HasPrefix(pattern, regexPrefix) {
		return strings.ReplaceAll(url, pattern, replacement)
	}

	regex, err := regexp.Compile(strings.TrimPrefix(pattern, regexPrefix))
	if err != nil {
		util.LogVerbose("Warning: invalid regex pattern '%s': %v", pattern, err)
		return url
	}
	return regex.ReplaceAllString(url, replacement)
}

// Validate reports every regex pattern that does not compile
func (r *URLReplacer) Validate() []error {
	var errs []error
	for _, pattern := range r.patterns {
		if strings.HasPrefix(pattern, regexPrefix) {
			if _, err := regexp.Compile(strings.TrimPrefix(pattern, regexPrefix)); err != nil {
				errs = append(errs, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err))
			}
		}
	}
	return errs
}
