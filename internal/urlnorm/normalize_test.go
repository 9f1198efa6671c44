package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare domain", "example.com", "example.com"},
		{"upper case", "EXAMPLE.COM", "example.com"},
		{"scheme and www", "https://www.example.com", "example.com"},
		{"http scheme", "http://example.com", "example.com"},
		{"path and query", "https://example.com/path/to?q=1#frag", "example.com"},
		{"port", "example.com:8080/path", "example.com"},
		{"surrounding whitespace", "  example.com  ", "example.com"},
		{"subdomain kept", "blog.example.com", "blog.example.com"},
		{"trailing dot", "example.com.", "example.com"},
		{"www only label kept", "www.com", "www.com"},
		{"idn converted", "bücher.de", "xn--bcher-kva.de"},
		{"ipv4", "http://192.168.0.1/admin", "192.168.0.1"},
		{"empty", "", ""},
		{"spaces inside", "not a url", ""},
		{"no dot", "localhost", ""},
		{"ftp scheme", "ftp://example.com", ""},
		{"only scheme", "https://", ""},
		{"invalid characters", "exa_mple.com", ""},
		{"leading hyphen", "-example.com", ""},
		{"empty label", "example..com", ""},
		{"ipv6", "http://[::1]/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	t.Parallel()

	domains := []string{
		"example.com",
		"Example.org",
		"shop.example.co.uk",
		"a-b.io",
		"xn--bcher-kva.de",
	}

	for _, d := range domains {
		t.Run(d, func(t *testing.T) {
			t.Parallel()

			full := Normalize("https://www." + d + "/path?q=1")
			bare := Normalize(d)
			if full == "" || full != bare {
				t.Errorf("expected %q and %q to normalize equally", full, bare)
			}
		})
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"https://www.example.com/a", "example.com"},
		{"http://Sub.Example.com:8443/", "sub.example.com"},
		{"/relative/path", ""},
		{"mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		if got := Host(tt.input); got != tt.want {
			t.Errorf("Host(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want string
	}{
		{"blog.example.com", "example.com"},
		{"shop.example.co.uk", "example.co.uk"},
		{"example.com", "example.com"},
		{"10.0.0.1", "10.0.0.1"},
	}

	for _, tt := range tests {
		if got := RegistrableDomain(tt.host); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	if !SameSite("example.com", "example.com") {
		t.Error("identical hosts should be the same site")
	}
	if !SameSite("example.com", "blog.example.com") {
		t.Error("subdomain should be the same site")
	}
	if SameSite("example.com", "notexample.com") {
		t.Error("suffix without dot boundary should not match")
	}
	if SameSite("", "example.com") {
		t.Error("empty site should never match")
	}
}

func TestSeedURL(t *testing.T) {
	t.Parallel()

	if got := SeedURL("example.com"); got != "https://example.com/" {
		t.Errorf("unexpected seed URL %q", got)
	}
}
