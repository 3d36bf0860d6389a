package attack

import (
	"errors"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"auth_downgrade", TypeAuthDowngrade, false},
		{"STATE_CONFUSION", TypeStateConfusion, false},
		{" cross_kernel ", TypeCrossKernel, false},
		{"relay_only", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAttackType) {
					t.Fatalf("expected ErrUnknownAttackType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{CardToTerminal, TerminalToCard} {
		got, err := ParseDirection(d.String())
		if err != nil {
			t.Fatalf("ParseDirection(%q): %v", d.String(), err)
		}
		if got != d {
			t.Errorf("round trip of %v gave %v", d, got)
		}
	}

	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected an error for an unknown direction")
	}
	if s := Direction(7).String(); s != "Direction(7)" {
		t.Errorf("String() = %q", s)
	}
}
