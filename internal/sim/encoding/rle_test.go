package encoding

import (
	"testing"

	"github.com/BinaryBen1/virus-simulation/internal/sim/geometry"
	"github.com/BinaryBen1/virus-simulation/internal/sim/nav"
)

func TestRLE_GridRoundTrip(t *testing.T) {
	g, err := nav.Rasterize(64, []geometry.Wall{
		{Start: geometry.Pt(10, 10), End: geometry.Pt(10, 50), Thickness: 3},
		{Start: geometry.Pt(20, 30), End: geometry.Pt(60, 30), Thickness: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	in := g.Codes()
	enc := EncodeRLE(in)
	if len(enc) >= len(in) {
		t.Fatalf("encoding not compact: %d bytes for %d cells", len(enc), len(in))
	}
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_LengthChecked(t *testing.T) {
	enc := EncodeRLE([]uint16{0, 0, 0, 1})
	if _, err := DecodeRLE(enc, 5); err == nil {
		t.Fatalf("short stream accepted")
	}
	if _, err := DecodeRLE(enc, 3); err == nil {
		t.Fatalf("long stream accepted")
	}
	if _, err := DecodeRLE("%%%", 3); err == nil {
		t.Fatalf("bad base64 accepted")
	}
	if out, err := DecodeRLE(EncodeRLE(nil), 0); err != nil || len(out) != 0 {
		t.Fatalf("empty: %v %v", out, err)
	}
}
