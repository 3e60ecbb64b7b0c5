package errcat

import (
	"errors"
	"testing"
)

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if Wrap("C7", "Dispatch", KindUpstream, "fp123", nil) != nil {
		t.Fatal("expected nil wrap of nil cause")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Upstream("C7", "Dispatch", "fp123", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause, got %v", err)
	}
}

func TestIsKind(t *testing.T) {
	err := Configuration("C7", "Dispatch", "", errors.New("no api key"))
	if !IsKind(err, KindConfiguration) {
		t.Fatal("expected KindConfiguration")
	}
	if IsKind(err, KindUpstream) {
		t.Fatal("did not expect KindUpstream")
	}
	if IsKind(errors.New("plain"), KindConfiguration) {
		t.Fatal("plain error should never match a kind")
	}
}

func TestErrorMessageShape(t *testing.T) {
	err := New("C3", "Admit", KindConfiguration, "hour-473821")
	got := err.Error()
	want := "C3: Admit(hour-473821)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
