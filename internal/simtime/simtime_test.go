package simtime

import (
	"math"
	"testing"
)

func TestResolutionValidate(t *testing.T) {
	tests := []struct {
		name    string
		res     Resolution
		wantErr bool
	}{
		{"default", DefaultResolutionMS, false},
		{"coarse", 1.0, false},
		{"zero", 0, true},
		{"negative", -0.1, true},
		{"nan", Resolution(math.NaN()), true},
		{"inf", Resolution(math.Inf(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStepsFromMS(t *testing.T) {
	res := Resolution(0.1)

	tests := []struct {
		name    string
		ms      float64
		want    Step
		wantErr bool
	}{
		{"one step", 0.1, 1, false},
		{"ten steps", 1.0, 10, false},
		{"many steps", 15.0, 150, false},
		{"off grid", 0.15, 0, true},
		{"below resolution", 0.05, 0, true},
		{"zero", 0, 0, true},
		{"negative", -1.0, 0, true},
		{"nan", math.NaN(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := res.StepsFromMS(tt.ms)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StepsFromMS(%v) error = %v, wantErr %v", tt.ms, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("StepsFromMS(%v) = %d, want %d", tt.ms, got, tt.want)
			}
		})
	}
}

func TestStepsFromMS_FloatAccumulation(t *testing.T) {
	// 0.3 is not exactly representable, but it is still three 0.1 steps
	// and must survive quantization.
	res := Resolution(0.1)
	got, err := res.StepsFromMS(0.3)
	if err != nil {
		t.Fatalf("StepsFromMS(0.3) error = %v", err)
	}
	if got != 3 {
		t.Errorf("StepsFromMS(0.3) = %d, want 3", got)
	}
}

func TestMSFromSteps_RoundTrip(t *testing.T) {
	res := Resolution(0.5)
	for _, steps := range []Step{1, 2, 7, 100} {
		ms := res.MSFromSteps(steps)
		back, err := res.StepsFromMS(ms)
		if err != nil {
			t.Fatalf("round trip %d steps: %v", steps, err)
		}
		if back != steps {
			t.Errorf("round trip %d steps = %d", steps, back)
		}
	}
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{Start: 10, Stop: 20}

	if !iv.Contains(10) {
		t.Error("Contains(10) = false, want true (inclusive start)")
	}
	if iv.Contains(20) {
		t.Error("Contains(20) = true, want false (exclusive stop)")
	}
	if iv.Contains(9) || iv.Contains(21) {
		t.Error("Contains outside window = true, want false")
	}
	if iv.Empty() {
		t.Error("Empty() = true for a 10 step window")
	}
	if !(Interval{Start: 5, Stop: 5}).Empty() {
		t.Error("Empty() = false for zero width window")
	}
}
