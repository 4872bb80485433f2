package util

import "testing"

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
		{5 * 1024 * 1024 * 1024, " 5.0 GiB"},
	}

	for _, tc := range testCases {
		got := FormatBytes(tc.in)
		if got != tc.want {
			t.Errorf("FormatBytes(%v): got %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("FormatBytes(%v): width %d, want 8", tc.in, len(got))
		}
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint([]byte{0x02, 0x01})
	if len(fp) != 19 {
		t.Fatalf("fingerprint %q: length %d, want 19", fp, len(fp))
	}
	if fp != Fingerprint([]byte{0x02, 0x01}) {
		t.Fatal("fingerprint not deterministic")
	}
	if fp == Fingerprint([]byte{0x03, 0x01}) {
		t.Fatal("different keys share a fingerprint")
	}
}
