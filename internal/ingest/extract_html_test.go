package ingest

import "testing"

func TestExtractHTMLLinks(t *testing.T) {
	page := `<html><body>
		<h1>Recordings</h1>
		<a href="call1.wav">first</a>
		<a href="/files/call2.MP3">second</a>
		<a href="https://cdn.example.org/call3.ogg?sig=abc">third</a>
		<a href="notes.pdf">skip me</a>
		<a href="call4.m4a#fragment">fourth</a>
		<a>no href</a>
	</body></html>`

	got := ExtractHTMLLinks([]byte(page), "https://example.com/recordings/")

	want := []Candidate{
		{URL: "https://example.com/recordings/call1.wav", Name: "call1.wav"},
		{URL: "https://example.com/files/call2.MP3", Name: "call2.MP3"},
		{URL: "https://cdn.example.org/call3.ogg?sig=abc", Name: "call3.ogg"},
		{URL: "https://example.com/recordings/call4.m4a#fragment", Name: "call4.m4a"},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExtractHTMLLinksEmpty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no anchors", "<html><body><p>nothing here</p></body></html>"},
		{"no audio anchors", `<html><body><a href="report.pdf">x</a></body></html>`},
		{"empty body", ""},
		{"not html at all", "just some text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractHTMLLinks([]byte(tt.body), "https://example.com/"); len(got) != 0 {
				t.Errorf("got %d candidates, want 0: %+v", len(got), got)
			}
		})
	}
}
