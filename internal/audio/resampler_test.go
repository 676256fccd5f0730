package audio

import "testing"

func TestResamplePassthroughWhenRatesMatch(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, 0.2, 0.3}
	out := r.Resample(in)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResampleUpsamplingDoublesLength(t *testing.T) {
	r := NewResampler(8000, 16000)
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i) / 100
	}
	out := r.Resample(in)
	want := 200
	if len(out) != want {
		t.Errorf("len(out) = %d, want %d", len(out), want)
	}
}

func TestResampleDownsamplingHalvesLength(t *testing.T) {
	r := NewResampler(16000, 8000)
	in := make([]float32, 100)
	out := r.Resample(in)
	want := 50
	if len(out) != want {
		t.Errorf("len(out) = %d, want %d", len(out), want)
	}
}

func TestResampleEmptyInputReturnsEmpty(t *testing.T) {
	r := NewResampler(16000, 8000)
	out := r.Resample(nil)
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}

func TestResampleInPlaceShortCircuitsOnEqualRates(t *testing.T) {
	in := []float32{1, 2, 3}
	out := ResampleInPlace(in, 16000, 16000)
	if len(out) != len(in) {
		t.Errorf("len(out) = %d, want %d", len(out), len(in))
	}
}
