package secrets

import "testing"

func TestValidator_IsRandom_HighEntropyHexSecret(t *testing.T) {
	v := NewValidator(1e-5)
	// A plausible hex-encoded secret of sufficient length and randomness.
	if !v.IsRandom("a93f1c2e7b8d4f01c6e2b9a7d3f80c15", nil) {
		t.Fatalf("expected high-entropy hex string to be classified random")
	}
}

func TestValidator_IsRandom_RepeatedCharacterRejected(t *testing.T) {
	v := NewValidator(1e-5)
	if v.IsRandom("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil) {
		t.Fatalf("expected a low-entropy repeated string to be rejected")
	}
}

func TestValidator_IsRandom_DictionaryWordRejected(t *testing.T) {
	v := NewValidator(1e-5)
	if v.IsRandom("passwordpassword", nil) {
		t.Fatalf("expected a dictionary-like string to be rejected")
	}
}

func TestValidator_IsRandom_BaseHintOverrideNarrowsBase(t *testing.T) {
	v := NewValidator(1e-6)
	value := "QUJDREVGMTIzNDU2Nzg5MGFiY2RlZg=="
	withoutHint := v.IsRandom(value, nil)
	withHint := v.IsRandom(value, &EntropyRequirement{MinProbability: 1e-6, BaseHint: 64})
	// Both should agree the value looks random; the hint mainly changes the
	// probability estimate, not the verdict for a clearly base64 string.
	if !withoutHint || !withHint {
		t.Fatalf("expected base64-shaped high-entropy value to pass with and without hint")
	}
}

func TestDetectBase_HexShape(t *testing.T) {
	if detectBase([]byte("0123456789abcdef0123456789abcdef")) != 16 {
		t.Fatalf("expected hex shape to detect base 16")
	}
}

func TestDetectBase_Base36Shape(t *testing.T) {
	if detectBase([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789AB")) != 36 {
		t.Fatalf("expected upper-alnum shape to detect base 36")
	}
}

func TestCountDistinctValues(t *testing.T) {
	n := countDistinctValues([]byte("abcabc"))
	if n != 3 {
		t.Fatalf("expected 3 distinct values, got %d", n)
	}
}

func TestFactorial(t *testing.T) {
	cases := map[int]float64{0: 1, 1: 1, 5: 120}
	for n, want := range cases {
		if got := factorial(n); got != want {
			t.Fatalf("factorial(%d) = %v, want %v", n, got, want)
		}
	}
}
