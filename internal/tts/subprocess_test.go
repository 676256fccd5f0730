package tts

import (
	"reflect"
	"testing"
)

func TestSubstituteReplacesPlaceholders(t *testing.T) {
	cmd := []string{"piper", "--model", "en.onnx", "--output_file", "{wav}", "--text", "{text}"}
	got := substitute(cmd, "/tmp/out.wav", "hello there")
	want := []string{"piper", "--model", "en.onnx", "--output_file", "/tmp/out.wav", "--text", "hello there"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("substitute = %v, want %v", got, want)
	}
}

func TestSubstituteLeavesUnrelatedArgsUntouched(t *testing.T) {
	cmd := []string{"echo", "no placeholders here"}
	got := substitute(cmd, "/tmp/x.wav", "ignored")
	if !reflect.DeepEqual(got, cmd) {
		t.Errorf("substitute = %v, want unchanged %v", got, cmd)
	}
}
