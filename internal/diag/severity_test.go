package diag

import "testing"

func TestSeverityFails(t *testing.T) {
	cases := []struct {
		sev              Severity
		warningsAsErrors bool
		want             bool
	}{
		{SevError, false, true},
		{SevError, true, true},
		{SevWarning, false, false},
		{SevWarning, true, true},
		{SevInfo, false, false},
		{SevInfo, true, false},
	}
	for _, tc := range cases {
		if got := tc.sev.Fails(tc.warningsAsErrors); got != tc.want {
			t.Errorf("%s.Fails(%v) = %v, want %v", tc.sev, tc.warningsAsErrors, got, tc.want)
		}
	}
}
