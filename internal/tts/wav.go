package tts

import (
	"encoding/binary"
	"fmt"
	"os"
)

// readWAV decodes a minimal PCM16 mono/stereo RIFF/WAVE file into float32
// samples. Kept on the standard library: no WAV-container parsing library
// appears anywhere in this module's dependency corpus, and the format is
// small enough that a hand-rolled reader is the idiomatic choice malgo's
// own ecosystem reaches for (malgo itself only handles raw PCM buffers).
func readWAV(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%s: not a RIFF/WAVE file", path)
	}

	var sampleRate int
	var bitsPerSample int
	var channels int
	var pcm []byte

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			break
		}
		switch id {
		case "fmt ":
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if pcm == nil || bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("%s: expected 16-bit PCM data chunk", path)
	}

	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}

	if channels == 2 {
		mono := make([]float32, n/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2
		}
		samples = mono
	}

	return samples, sampleRate, nil
}
