package color

import (
	"strings"
	"testing"
)

func TestEnableDisable(t *testing.T) {
	orig := Enabled()
	defer func() {
		if orig {
			Enable()
		} else {
			Disable()
		}
	}()

	Enable()
	if !Enabled() {
		t.Error("expected colors to be enabled after Enable()")
	}
	Disable()
	if Enabled() {
		t.Error("expected colors to be disabled after Disable()")
	}
}

func TestColorFuncs(t *testing.T) {
	Enable()
	defer Disable()

	tests := []struct {
		name string
		fn   func(string) string
		code string
	}{
		{"success", Success, Green},
		{"error", Error, Red},
		{"warning", Warning, Yellow},
		{"info", Info, Cyan},
		{"header", Header, Bold},
		{"critical", Critical, BgRed},
	}
	for _, tt := range tests {
		got := tt.fn("x")
		if !strings.Contains(got, tt.code) || !strings.HasSuffix(got, Reset) {
			t.Errorf("%s: expected %q wrapped output, got %q", tt.name, tt.code, got)
		}
	}
}

func TestDisabledIsPlain(t *testing.T) {
	Disable()
	if got := Successf("%d ok", 3); got != "3 ok" {
		t.Errorf("expected plain text, got %q", got)
	}
	if got := Digest("0123456789abcdef0123"); got != "0123456789ab" {
		t.Errorf("expected shortened digest, got %q", got)
	}
}

func TestState(t *testing.T) {
	Enable()
	defer Disable()

	if !strings.Contains(State("LOCKED"), Green) {
		t.Error("LOCKED should be green")
	}
	if !strings.Contains(State("DRIFTED"), Red) {
		t.Error("DRIFTED should be red")
	}
	if !strings.Contains(State("UNLOCKED"), Yellow) {
		t.Error("UNLOCKED should be yellow")
	}
}
