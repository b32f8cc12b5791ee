package bitmap

import (
	"errors"
	"testing"
)

// buildTestRaster creates a raster with a deterministic pseudo-random
// pattern so round-trip tests exercise every byte.
func buildTestRaster(t *testing.T, w, h int, topDown bool) *Raster {
	t.Helper()
	r, err := NewRaster(w, h)
	if err != nil {
		t.Fatalf("NewRaster(%d, %d): %v", w, h, err)
	}
	r.TopDown = topDown
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.SetPixel(x, y, (x*31+y*17)%5 < 2)
		}
	}
	return r
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		topDown bool
	}{
		{"byte aligned bottom-up", 64, 16, false},
		{"byte aligned top-down", 64, 16, true},
		{"ragged width bottom-up", 61, 9, false},
		{"ragged width top-down", 61, 9, true},
		{"single pixel", 1, 1, false},
		{"display header zone", 800, 94, false},
		{"divider band", 800, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := buildTestRaster(t, tt.w, tt.h, tt.topDown)
			encoded := Encode(orig)

			if got, want := len(encoded), EncodedSize(tt.w, tt.h); got != want {
				t.Fatalf("encoded size = %d, want %d", got, want)
			}
			if encoded[0] != 'B' || encoded[1] != 'M' {
				t.Fatalf("missing BM magic")
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !decoded.Equal(orig) {
				t.Errorf("round-trip mismatch for %dx%d topDown=%v", tt.w, tt.h, tt.topDown)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode(buildTestRaster(t, 123, 45, false))
	b := Encode(buildTestRaster(t, 123, 45, false))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid := Encode(buildTestRaster(t, 40, 10, false))

	corrupt := func(mutate func(b []byte)) []byte {
		b := make([]byte, len(valid))
		copy(b, valid)
		mutate(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", valid[:20]},
		{"truncated pixel data", valid[:len(valid)-4]},
		{"bad magic", corrupt(func(b []byte) { b[0] = 'X' })},
		{"wrong bit depth", corrupt(func(b []byte) { b[28] = 8 })},
		{"compressed", corrupt(func(b []byte) { b[30] = 1 })},
		{"zero width", corrupt(func(b []byte) { b[18], b[19], b[20], b[21] = 0, 0, 0, 0 })},
		{"offset past end", corrupt(func(b []byte) { b[10], b[11] = 0xFF, 0xFF })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrMalformedBitmap) {
				t.Errorf("Decode(%s) = %v, want ErrMalformedBitmap", tt.name, err)
			}
		})
	}
}

func TestDecodeNormalisesPadBits(t *testing.T) {
	orig := buildTestRaster(t, 13, 3, false) // 3 pad bits per row byte, 2 pad bytes per wire row
	encoded := Encode(orig)

	// Smear junk into the pad bits of every wire row, as a sloppy foreign
	// encoder might.
	row := ((13 + 31) / 32) * 4
	for y := 0; y < 3; y++ {
		encoded[pixelDataOffset+y*row+1] |= 0x07
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Equal(orig) {
		t.Errorf("pad bits leaked into decoded raster")
	}
}

func TestCanonicalRastersRoundTrip(t *testing.T) {
	blank := Blank(800, 28)
	handBlank, _ := NewRaster(800, 28)
	handBlank.Fill(true)
	if !blank.Equal(handBlank) {
		t.Errorf("Blank differs from hand-built all-white raster")
	}

	divider := Divider(800, 2)
	handDivider, _ := NewRaster(800, 2)
	if !divider.Equal(handDivider) {
		t.Errorf("Divider differs from hand-built all-black raster")
	}

	for name, r := range map[string]*Raster{"blank": blank, "divider": divider} {
		decoded, err := Decode(Encode(r))
		if err != nil {
			t.Fatalf("%s round-trip: %v", name, err)
		}
		if !decoded.Equal(r) {
			t.Errorf("%s raster did not round-trip", name)
		}
	}
}
