package main

import (
	"strings"
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/observerproto"
)

func TestBar(t *testing.T) {
	got := bar(4, 1, 1, 1, 1)
	if len(got) != barWidth {
		t.Fatalf("len=%d", len(got))
	}
	want := strings.Repeat(".", 10) + strings.Repeat("e", 10) + strings.Repeat("I", 10) + strings.Repeat("r", 10)
	if got != want {
		t.Fatalf("bar=%q", got)
	}
	if got := bar(0); got != strings.Repeat(" ", barWidth) {
		t.Fatalf("empty bar=%q", got)
	}
	if got := bar(3, 3, 0, 0, 0); got != strings.Repeat(".", barWidth) {
		t.Fatalf("all susceptible=%q", got)
	}
}

func TestSummarize(t *testing.T) {
	s := summarize(&observerproto.TickMsg{Tick: 9, Susceptible: 5, Infectious: 5, NewInfections: 2})
	if !strings.HasPrefix(s, "tick=9 S=5 E=0 I=5 R=0 new=2 |") {
		t.Fatalf("summary %q", s)
	}
}
