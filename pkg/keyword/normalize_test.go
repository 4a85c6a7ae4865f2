package keyword

import "testing"

func TestNormalizeString(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"JUAN PÉREZ", "juan perez"},
		{"  Finalizada ", "finalizada"},
		{"Lápiz Luz", "lapiz luz"},
		{"Sin Arnés", "sin arnes"},
		{"CAÑERÍA", "caneria"},
		{"", ""},
		{"   ", ""},
		{"sin observaciones", "sin observaciones"},
	}
	for _, tt := range tests {
		got := NormalizeString(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeString(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_NonText(t *testing.T) {
	var nilStr *string
	for _, v := range []any{nil, 42, 3.14, true, nilStr, []string{"a"}} {
		if got := Normalize(v); got != "" {
			t.Errorf("Normalize(%#v) = %q, want empty", v, got)
		}
	}
	s := " Región Metropolitana "
	if got := Normalize(&s); got != "region metropolitana" {
		t.Errorf("Normalize(&s) = %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Técnico NO USA casco",
		"  s/o. ",
		"Ñandú Ü ç",
		"DESCHAQUETADORA DE PRIMERA CAPA",
		"día 1/2/2023 — retraso",
	}
	for _, in := range inputs {
		once := NormalizeString(in)
		twice := NormalizeString(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
