package server

import "testing"

func TestParseInt(t *testing.T) {
	if v, ok := parseInt("-42"); !ok || v != -42 {
		t.Errorf("parseInt(-42) = (%d, %v), want (-42, true)", v, ok)
	}
	if _, ok := parseInt("abc"); ok {
		t.Errorf("parseInt(abc) ok = true, want false")
	}
}

func TestParseUint(t *testing.T) {
	if v, ok := parseUint("42"); !ok || v != 42 {
		t.Errorf("parseUint(42) = (%d, %v), want (42, true)", v, ok)
	}
	if _, ok := parseUint("-1"); ok {
		t.Errorf("parseUint(-1) ok = true, want false")
	}
}

func TestParseFloat(t *testing.T) {
	if v, ok := parseFloat("3.5"); !ok || v != 3.5 {
		t.Errorf("parseFloat(3.5) = (%v, %v), want (3.5, true)", v, ok)
	}
	if _, ok := parseFloat("abc"); ok {
		t.Errorf("parseFloat(abc) ok = true, want false")
	}
}
