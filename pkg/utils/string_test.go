package utils

import "testing"

func TestFoldKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Calling_Number", "callingnumber"},
		{"SOURCE NUMBER", "sourcenumber"},
		{"  caller ", "caller"},
		{"a_party", "aparty"},
		{"Start\tTime", "starttime"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FoldKey(tt.in); got != tt.want {
				t.Errorf("FoldKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+91 (98) 765-43210"); got != "919876543210" {
		t.Errorf("Digits() = %q", got)
	}

	if got := Digits("abc"); got != "" {
		t.Errorf("Digits() = %q, want empty", got)
	}
}

func TestTitleWords(t *testing.T) {
	tests := map[string]string{
		"Call Spikes":                      "Call_Spikes",
		"IMEI–Multiple MSISDNs Analyzer":   "IMEI_Multiple_MSISDNs_Analyzer",
		"GeoIP vs WHOIS Mismatch Detector": "GeoIP_vs_WHOIS_Mismatch_Detector",
		"Port-Protocol Anomaly Detector":   "Port_Protocol_Anomaly_Detector",
	}

	for in, want := range tests {
		if got := TitleWords(in); got != want {
			t.Errorf("TitleWords(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStringHelper(t *testing.T) {
	s := NewStringHelper()

	if got := s.NormalizeWhitespace("  a   b  "); got != "a b" {
		t.Errorf("NormalizeWhitespace() = %q", got)
	}

	if got := s.TruncateString("abcdef", 3); got != "abc..." {
		t.Errorf("TruncateString() = %q", got)
	}
}
