package redact

import "testing"

const highEntropySecret = "sk-ant-REDACTED"

func TestStringNoSecrets(t *testing.T) {
	input := "hello world, this is normal text"
	if got := String(input); got != input {
		t.Errorf("String(%q) = %q, want unchanged", input, got)
	}
}

func TestStringWithSecret(t *testing.T) {
	input := "my key is " + highEntropySecret + " ok"
	want := "my key is REDACTED ok"
	if got := String(input); got != want {
		t.Errorf("String(%q) = %q, want %q", input, got, want)
	}
}
