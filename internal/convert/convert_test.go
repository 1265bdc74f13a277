package convert

import (
	"strings"
	"testing"
)

func TestHTMLToTextStripsMarkup(t *testing.T) {
	in := `<html><head><title>nope</title><style>p{color:red}</style></head>
<body><nav>Skip to content</nav>
<h1>Servers</h1>
<p>List servers with <code>GET /servers</code>.</p>
<script>alert("x")</script>
</body></html>`

	text, err := HTMLToText(strings.NewReader(in))
	if err != nil {
		t.Fatalf("HTMLToText failed: %v", err)
	}
	for _, want := range []string{"Servers", "GET /servers"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	for _, banned := range []string{"alert", "color:red", "nope"} {
		if strings.Contains(text, banned) {
			t.Errorf("output leaked %q:\n%s", banned, text)
		}
	}
	if !strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\n\n") {
		t.Errorf("output must end in exactly one newline: %q", text)
	}
}

func TestHTMLToTextCollapsesBlankLines(t *testing.T) {
	in := "<div><p>one</p></div>\n\n\n<div><p>two</p></div>"
	text, err := HTMLToText(strings.NewReader(in))
	if err != nil {
		t.Fatalf("HTMLToText failed: %v", err)
	}
	if strings.Contains(text, "\n\n\n") {
		t.Errorf("blank lines not collapsed: %q", text)
	}
}

func TestMarkdownToText(t *testing.T) {
	src := []byte("# Compute API\n\nUse `POST /servers` to create a server.\n\n```\ncurl -X POST\n  -H 'Accept: application/json'\n```\n")
	text, err := MarkdownToText(src)
	if err != nil {
		t.Fatalf("MarkdownToText failed: %v", err)
	}
	for _, want := range []string{"Compute API", "POST /servers", "curl -X POST", "Accept: application/json"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "#") || strings.Contains(text, "```") {
		t.Errorf("markdown syntax leaked: %q", text)
	}
}

func TestFilterKeep(t *testing.T) {
	f := Filter{MinBytes: 20, RequiredKeywords: []string{"GET", "POST"}}

	cases := []struct {
		name string
		text string
		want bool
	}{
		{"contentful page", "The GET /servers operation lists all servers.", true},
		{"too small", "GET /x", false},
		{"pure navigation", "Index of all chapters, see the table of contents.", false},
	}
	for _, tc := range cases {
		if got := f.Keep(tc.text); got != tc.want {
			t.Errorf("%s: Keep() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilterNoKeywordsKeepsLargePages(t *testing.T) {
	f := Filter{MinBytes: 5}
	if !f.Keep("plenty of text here") {
		t.Error("page above the size threshold must be kept when no keywords are required")
	}
}
