package sharecode

import "testing"

func TestNewShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := New()
		if len(code) != Length {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), Length)
		}
		if Normalize(code) != code {
			t.Fatalf("code %q is not normalized", code)
		}
	}
}

func TestNewExcept(t *testing.T) {
	src := New()
	for i := 0; i < 50; i++ {
		if got := NewExcept(src); got == src {
			t.Fatalf("NewExcept returned the excluded code %q", got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  ab12cd34 "); got != "AB12CD34" {
		t.Errorf("Normalize = %q", got)
	}
}
