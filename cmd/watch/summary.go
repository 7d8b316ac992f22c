package main

import (
	"fmt"
	"strings"

	"github.com/BinaryBen1/virus-simulation/internal/observerproto"
)

const barWidth = 40

// summarize renders one TICK as counts plus a proportional S/E/I/R bar.
func summarize(t *observerproto.TickMsg) string {
	total := t.Susceptible + t.Infected + t.Infectious + t.Removed
	return fmt.Sprintf("tick=%d S=%d E=%d I=%d R=%d new=%d |%s|",
		t.Tick, t.Susceptible, t.Infected, t.Infectious, t.Removed, t.NewInfections,
		bar(total, t.Susceptible, t.Infected, t.Infectious, t.Removed))
}

func bar(total int, parts ...int) string {
	if total <= 0 {
		return strings.Repeat(" ", barWidth)
	}
	glyphs := []byte{'.', 'e', 'I', 'r'}
	var b strings.Builder
	used := 0
	acc := 0
	for i, n := range parts {
		acc += n
		end := acc * barWidth / total
		if i == len(parts)-1 {
			end = barWidth
		}
		for ; used < end; used++ {
			b.WriteByte(glyphs[i])
		}
	}
	return b.String()
}
