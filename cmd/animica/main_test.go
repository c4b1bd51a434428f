package main

import "testing"

func TestDomainErrorfCarriesDomainExitCode(t *testing.T) {
	err := domainErrorf("bad thing: %d", 7)
	ce, ok := err.(*cliError)
	if !ok {
		t.Fatalf("expected *cliError, got %T", err)
	}
	if ce.code != exitDomainError {
		t.Fatalf("code = %d, want %d", ce.code, exitDomainError)
	}
	if ce.Error() != "bad thing: 7" {
		t.Fatalf("unexpected message: %q", ce.Error())
	}
}

func TestUsageErrorfCarriesUsageExitCode(t *testing.T) {
	err := usageErrorf("bad flag")
	ce := err.(*cliError)
	if ce.code != exitUsageError {
		t.Fatalf("code = %d, want %d", ce.code, exitUsageError)
	}
}

func TestUnavailableErrorfCarriesUnavailableExitCode(t *testing.T) {
	err := unavailableErrorf("timed out")
	ce := err.(*cliError)
	if ce.code != exitUnavailable {
		t.Fatalf("code = %d, want %d", ce.code, exitUnavailable)
	}
}
