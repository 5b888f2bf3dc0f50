package identity

import "testing"

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Keizersgracht 12-H", "keizersgracht 12-h"},
		{"  Keizersgracht   12-H  ", "keizersgracht 12-h"},
		{"Keizersgracht 12–H", "keizersgracht 12-h"},
		{"PRINSENGRACHT 263", "prinsengracht 263"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Keizersgracht 12-H H", "Keizersgracht 12-H"},
		{"Singel 4/2 2", "Singel 4/2"},
		{"Keizersgracht 12-H", "Keizersgracht 12-H"},
		{"Prinsengracht 263", "Prinsengracht 263"},
		{"Herengracht 10-A B", "Herengracht 10-A B"},
	}
	for _, tt := range tests {
		if got := CleanAddress(tt.in); got != tt.want {
			t.Errorf("CleanAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
		// cleaning twice must not strip further
		if got := CleanAddress(CleanAddress(tt.in)); got != tt.want {
			t.Errorf("CleanAddress twice on %q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("Keizersgracht 12-H", "1015 CX")
	b := Fingerprint("keizersgracht  12–h", "1015CX")
	if a != b {
		t.Errorf("expected equal fingerprints for equivalent addresses, got %s vs %s", a, b)
	}
	c := Fingerprint("Keizersgracht 14", "1015 CX")
	if a == c {
		t.Error("different addresses must not collide")
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}
}
