package currencypkg

import "testing"

func TestParseMinor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in        string
		want      int64
		wantError error
	}{
		{in: "100", want: 10000},
		{in: "12.34", want: 1234},
		{in: "0.5", want: 50},
		{in: "-3.10", want: -310},
		{in: "0", want: 0},
		{in: "1.234", wantError: ErrInvalidAmount},
		{in: "abc", wantError: ErrInvalidAmount},
		{in: "", wantError: ErrInvalidAmount},
		{in: "100000000000000000000", wantError: ErrInvalidAmount},
	}

	for _, tc := range testCases {
		got, err := ParseMinor(tc.in)
		if err != tc.wantError {
			t.Errorf("ParseMinor(%q) returned error: %v, want %v", tc.in, err, tc.wantError)
			continue
		}

		if got != tc.want {
			t.Errorf("ParseMinor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatMinor(t *testing.T) {
	t.Parallel()

	testCases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		1234:   "12.34",
		10000:  "100.00",
		-25050: "-250.50",
	}

	for in, want := range testCases {
		if got := FormatMinor(in); got != want {
			t.Errorf("FormatMinor(%v) = %q, want %q", in, got, want)
		}
	}
}
