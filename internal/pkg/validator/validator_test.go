package validator

import (
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidConceptCode(t *testing.T) {
	valid := []string{"HORAS_EXTRA", "SALUD_EMPLEADO", "ARL", "PRIMA_SERVICIOS_2"}
	invalid := []string{"", "X", "horas_extra", "1SALUD", "HORAS EXTRA", "HORAS-EXTRA"}
	for _, code := range valid {
		if !IsValidConceptCode(code) {
			t.Errorf("IsValidConceptCode(%q) = false, want true", code)
		}
	}
	for _, code := range invalid {
		if IsValidConceptCode(code) {
			t.Errorf("IsValidConceptCode(%q) = true, want false", code)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	if _, ok := IsValidDate("2026-01-31"); !ok {
		t.Error("IsValidDate(2026-01-31) = false, want true")
	}
	if _, ok := IsValidDate("31/01/2026"); ok {
		t.Error("IsValidDate(31/01/2026) = true, want false")
	}
}
