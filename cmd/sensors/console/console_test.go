package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptLine(t *testing.T) {
	assert.Equal(t, "name? ", promptLine("name?", nil))
	assert.Equal(t, "continue? [N/y]: ", promptLine("continue?", []string{No, Yes}))
}

func TestResolveAnswer(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"empty gives default", "", No},
		{"yes", "y", Yes},
		{"upper case yes", " Y ", Yes},
		{"explicit no", "n", No},
		{"unknown gives default", "maybe", No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveAnswer(tt.response, []string{No, Yes}))
		})
	}
	assert.Equal(t, "free text", resolveAnswer("free text", nil))
}

func TestOutput(t *testing.T) {
	prevOut, prevErr := writer, errWriter
	defer SetOutput(prevOut, prevErr)
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)

	Printf("%s %d\n", "temp", 21)
	Infof("aborted")
	Warnf("no adapter %s", "found")
	Errorf("bus %d busy", 1)

	assert.Contains(t, out.String(), "temp 21\n")
	assert.Contains(t, out.String(), "aborted")
	assert.Contains(t, errOut.String(), "WARN")
	assert.Contains(t, errOut.String(), "no adapter found")
	assert.Contains(t, errOut.String(), "bus 1 busy")
}

func TestExit(t *testing.T) {
	err := Exit(3, "failed: %s", "boom")
	assert.Equal(t, 3, err.ExitCode())
	assert.Equal(t, "failed: boom", err.Error())
}
