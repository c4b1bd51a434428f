package main

import "testing"

func TestParseAttestationSplitsKeyValuePairs(t *testing.T) {
	b, err := parseAttestation([]string{"traps_ratio=0.99", "qos=1.0"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b["traps_ratio"] != "0.99" || b["qos"] != "1.0" {
		t.Fatalf("unexpected bundle: %#v", b)
	}
}

func TestParseAttestationRejectsMissingEquals(t *testing.T) {
	if _, err := parseAttestation([]string{"not-a-pair"}); err == nil {
		t.Fatalf("expected an error for a malformed --attest value")
	}
}

func TestParseAttestationAllowsValueContainingEquals(t *testing.T) {
	b, err := parseAttestation([]string{"sig=ab=cd"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b["sig"] != "ab=cd" {
		t.Fatalf("expected value to retain embedded '=', got %q", b["sig"])
	}
}
