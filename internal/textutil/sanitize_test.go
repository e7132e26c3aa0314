package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Certificate of Recycling.pdf", "Certificate of Recycling.pdf"},
		{"  AR/AP: Q1*.xlsx ", "AR-AP- Q1-.xlsx"},
		{`Bill "of" <Lading>?`, "Bill of Lading"},
		{"..", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Search Timeout!"); got != "search_timeout" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeToken("***"); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestArtifactName(t *testing.T) {
	got := ArtifactName("search_timeout", "ORD-42", "Weight Ticket", ".png")
	if got != "search_timeout_ORD-42_Weight Ticket.png" {
		t.Fatalf("got %q", got)
	}
	if got := ArtifactName("error", "ORD-1", "", ".html"); got != "error_ORD-1.html" {
		t.Fatalf("got %q", got)
	}
}
