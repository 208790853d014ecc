package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	base := E(KindCircuitOpen, "endpoint %s is excluded", "weather-svc")
	if got := base.Error(); got != "circuit_open: endpoint weather-svc is excluded" {
		t.Fatalf("unexpected message: %s", got)
	}
	if !IsKind(base, KindCircuitOpen) {
		t.Fatal("expected circuit_open kind")
	}
	if IsKind(base, KindTimeout) {
		t.Fatal("kind must not match a different kind")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := WrapE(KindBackend, cause, "openai api error")

	if !errors.Is(wrapped, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
	// A further layer of wrapping must still expose the kind.
	outer := fmt.Errorf("respond: %w", wrapped)
	kind, ok := KindOf(outer)
	if !ok || kind != KindBackend {
		t.Fatalf("KindOf through wrapping = %q, %v", kind, ok)
	}
}

func TestKindOfUntagged(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("untagged error must not report a kind")
	}
}
