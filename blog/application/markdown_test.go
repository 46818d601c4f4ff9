package application

import (
	"strings"
	"testing"
)

const testBaseURL = "https://racimmigration.example"

func TestMarkdownRendererImpl_Render(t *testing.T) {
	renderer := NewMarkdownRenderer(testBaseURL + "/")

	tests := []struct {
		name           string
		content        string
		expectedInHTML []string
		notInHTML      []string
	}{
		{
			name:           "Each line is its own paragraph",
			content:        "Line1\nLine2",
			expectedInHTML: []string{"<p>Line1</p>", "<p>Line2</p>"},
			notInHTML:      []string{"<br"},
		},
		{
			name:           "Blank lines do not add empty paragraphs",
			content:        "First\n\n\nSecond",
			expectedInHTML: []string{"<p>First</p>", "<p>Second</p>"},
			notInHTML:      []string{"<p></p>"},
		},
		{
			name:           "Windows line endings",
			content:        "One\r\nTwo",
			expectedInHTML: []string{"<p>One</p>", "<p>Two</p>"},
		},
		{
			name:           "List items stay in one list",
			content:        "Options:\n- Express Entry\n- PNP",
			expectedInHTML: []string{"<p>Options:</p>", "<li>Express Entry</li>\n<li>PNP</li>"},
		},
		{
			name:           "Fenced code keeps its lines",
			content:        "Run:\n```\nline a\nline b\n```\nDone",
			expectedInHTML: []string{"line a\nline b", "<p>Done</p>"},
		},
		{
			name:           "Tables stay intact",
			content:        "| Stream | Points |\n| --- | --- |\n| PNP | 600 |",
			expectedInHTML: []string{"<table>", "<td>600</td>"},
		},
		{
			name:           "Headings",
			content:        "## Eligibility\nYou need a job offer.",
			expectedInHTML: []string{`<h2 id="eligibility">Eligibility</h2>`, "<p>You need a job offer.</p>"},
		},
		{
			name:           "Relative post link",
			content:        "See [the guide](pnp-guide.md).",
			expectedInHTML: []string{`href="https://racimmigration.example/blog/pnp-guide"`},
		},
		{
			name:           "Relative image",
			content:        "![Map](assets/canada.png)",
			expectedInHTML: []string{`src="https://racimmigration.example/images/canada.png"`},
		},
		{
			name:           "Absolute links untouched",
			content:        "[IRCC](https://www.canada.ca/ircc) and [mail](mailto:info@example.com)",
			expectedInHTML: []string{`href="https://www.canada.ca/ircc"`, `href="mailto:info@example.com"`},
		},
		{
			name:           "Fragment links untouched",
			content:        "[Jump](#eligibility)",
			expectedInHTML: []string{`href="#eligibility"`},
		},
		{
			name:           "Raw HTML blocks are dropped",
			content:        "<script>alert(1)</script>\nAfter",
			expectedInHTML: []string{"<p>After</p>"},
			notInHTML:      []string{"<script", "alert(1)"},
		},
		{
			name:           "Inline raw HTML is dropped",
			content:        "Hi <img src=x onerror=alert(1)> there",
			expectedInHTML: []string{"Hi ", " there"},
			notInHTML:      []string{"onerror", "<img src=x"},
		},
		{
			name:      "Script URLs are not linked",
			content:   "[click](javascript:alert(1))",
			notInHTML: []string{`href="javascript:`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := renderer.Render(tt.content)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.expectedInHTML {
				if !strings.Contains(html, want) {
					t.Errorf("Render() missing %q in:\n%s", want, html)
				}
			}
			for _, unwanted := range tt.notInHTML {
				if strings.Contains(html, unwanted) {
					t.Errorf("Render() unexpectedly contains %q in:\n%s", unwanted, html)
				}
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "Single line", content: "Hello", expected: "Hello"},
		{name: "Two lines", content: "a\nb", expected: "a\n\nb"},
		{name: "Already separated", content: "a\n\nb", expected: "a\n\nb"},
		{name: "List", content: "- a\n- b", expected: "- a\n- b"},
		{name: "Text then list", content: "x\n1. a\n2. b", expected: "x\n\n1. a\n2. b"},
		{name: "Fence", content: "```\na\nb\n```", expected: "```\na\nb\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitParagraphs(tt.content); got != tt.expected {
				t.Errorf("splitParagraphs(%q) = %q, want %q", tt.content, got, tt.expected)
			}
		})
	}
}

func TestIsRelativeLink(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "Absolute HTTP URL",
			url:      "http://example.com/page",
			expected: false,
		},
		{
			name:     "Absolute HTTPS URL",
			url:      "https://example.com/page",
			expected: false,
		},
		{
			name:     "Protocol-relative URL",
			url:      "//example.com/page",
			expected: false,
		},
		{
			name:     "Mailto link",
			url:      "mailto:user@example.com",
			expected: false,
		},
		{
			name:     "Tel link",
			url:      "tel:+1234567890",
			expected: false,
		},
		{
			name:     "Data URI",
			url:      "data:image/png;base64,iVBOR...",
			expected: false,
		},
		{
			name:     "JavaScript URI",
			url:      "javascript:alert('test')",
			expected: false,
		},
		{
			name:     "Absolute path",
			url:      "/about/contact",
			expected: true,
		},
		{
			name:     "Relative path with ./",
			url:      "./images/photo.jpg",
			expected: true,
		},
		{
			name:     "Relative path with ../",
			url:      "../docs/readme.md",
			expected: true,
		},
		{
			name:     "Simple filename",
			url:      "image.png",
			expected: true,
		},
		{
			name:     "Relative path",
			url:      "posts/my-post.html",
			expected: true,
		},
		{
			name:     "Empty string",
			url:      "",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRelativeLink(tt.url)
			if result != tt.expected {
				t.Errorf("isRelativeLink(%q) = %v, want %v", tt.url, result, tt.expected)
			}
		})
	}
}
