package secret

import "testing"

func TestMaskerRedactsCaseInsensitive(t *testing.T) {
	m := NewMasker()
	m.Register("sk-1234567890")

	out := m.Mask("token is SK-1234567890 and also sk-1234567890")
	if out != "token is *** and also ***" {
		t.Fatalf("Mask = %q", out)
	}
}

func TestMaskerEmptyValueIgnored(t *testing.T) {
	m := NewMasker()
	m.Register("")

	out := m.Mask("unchanged text")
	if out != "unchanged text" {
		t.Fatalf("Mask = %q, want unchanged", out)
	}
}

func TestMaskerNoRegisteredSecrets(t *testing.T) {
	m := NewMasker()
	out := m.Mask("plain output")
	if out != "plain output" {
		t.Fatalf("Mask = %q, want unchanged", out)
	}
}

func TestMaskerMultipleSecrets(t *testing.T) {
	m := NewMasker()
	m.RegisterAll("alpha-secret", "beta-secret")

	out := m.Mask("alpha-secret and beta-secret together")
	if out != "*** and *** together" {
		t.Fatalf("Mask = %q", out)
	}
}
