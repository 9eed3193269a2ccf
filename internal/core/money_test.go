package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"5000000", "5000000", true},
		{"0.001", "0.001", true},
		{"", "", false},
		{"0", "", false},
		{"-5", "", false},
		{"+5", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for i, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d: expected ok, got %v", i, err)
			}
			if !got.Equal(MustAmount(tc.want)) {
				t.Errorf("case %d: ParseAmount(%q) = %s, want %s", i, tc.in, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("case %d: ParseAmount(%q) expected error", i, tc.in)
		}
	}
}

func TestDecimalAdditionIsExact(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3; this is the whole point of using
	// decimals for the carry chain.
	sum := MustAmount("0.1").Add(MustAmount("0.2"))
	if !sum.Equal(MustAmount("0.3")) {
		t.Fatalf("0.1 + 0.2 = %s, want 0.3", sum)
	}
}
