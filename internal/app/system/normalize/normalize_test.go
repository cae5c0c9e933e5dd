package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Email(tt.input)
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ada Lovelace", "Ada Lovelace"},
		{"  Ada Lovelace  ", "Ada Lovelace"},
		{"", ""},
		{"UPPERCASE NAME", "UPPERCASE NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRole(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sponsor", "sponsor"},
		{"SPONSOR", "sponsor"},
		{"  Applicant  ", "applicant"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Role(tt.input)
			if got != tt.want {
				t.Errorf("Role(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	if got := Status("  Active "); got != "active" {
		t.Errorf("Status = %q, want active", got)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Thesis on graph coloring", "Thesis on graph coloring"},
		{"trimmed", "  spaced out  ", "spaced out"},
		{"blank", "   ", ""},
		{"tags stripped", "<b>bold</b> claim", "bold claim"},
		{"script removed with content", "Hello <script>alert(1)</script>world", "Hello world"},
		{"ampersand preserved", "R&D proposal", "R&D proposal"},
		{"quotes preserved", `the "fast" path`, `the "fast" path`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Text(tt.input)
			if got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFold(t *testing.T) {
	if Fold("  Graph THEORY ") != Fold("graph theory") {
		t.Error("Fold should be case-insensitive and trim")
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"application/pdf", "application/pdf"},
		{"Application/PDF", "application/pdf"},
		{"text/plain; charset=utf-8", "text/plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ContentType(tt.input)
			if got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
