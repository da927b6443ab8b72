package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLReplacer(t *testing.T) {
	tests := []struct {
		name         string
		replacements map[string]string
		input        string
		expected     string
	}{
		{
			name:         "no replacements",
			replacements: map[string]string{},
			input:        "https://nodejs.org/dist/index.json",
			expected:     "https://nodejs.org/dist/index.json",
		},
		{
			name:         "simple host replacement",
			replacements: map[string]string{"nodejs.org": "mirror.example.com"},
			input:        "https://nodejs.org/dist/v20.1.0/node-v20.1.0-linux-x64.tar.gz",
			expected:     "https://mirror.example.com/dist/v20.1.0/node-v20.1.0-linux-x64.tar.gz",
		},
		{
			name:         "regex https upgrade",
			replacements: map[string]string{"regex:^http://(.+)": "https://$1"},
			input:        "http://windows.php.net/downloads/releases/php-7.0.4-nts-Win32-VC14-x64.zip",
			expected:     "https://windows.php.net/downloads/releases/php-7.0.4-nts-Win32-VC14-x64.zip",
		},
		{
			name: "plain patterns win over regex",
			replacements: map[string]string{
				"regex:^https://nodejs\\.org/(.+)": "https://regex.example.com/$1",
				"nodejs.org":                       "plain.example.com",
			},
			input:    "https://nodejs.org/dist/index.json",
			expected: "https://plain.example.com/dist/index.json",
		},
		{
			name:         "invalid regex is ignored",
			replacements: map[string]string{"regex:[": "x"},
			input:        "https://nodejs.org/",
			expected:     "https://nodejs.org/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewURLReplacer(tt.replacements).Apply(tt.input))
		})
	}
}

func TestURLReplacerValidate(t *testing.T) {
	r := NewURLReplacer(map[string]string{
		"regex:[":            "x",
		"regex:^http://(.+)": "https://$1",
		"nodejs.org":         "mirror",
	})
	errs := r.Validate()
	assert.Len(t, errs, 1)
}
