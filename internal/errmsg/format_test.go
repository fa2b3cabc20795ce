package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpItemLoad,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpItemLoad,
			err:      errors.New("item not found"),
			expected: "Failed to load item: item not found",
		},
		{
			name:     "session operation",
			op:       OpSessionOpen,
			err:      errors.New("server declined"),
			expected: "Failed to open playback session: server declined",
		},
		{
			name:     "playback operation",
			op:       OpPlaybackStart,
			err:      errors.New("no audio device"),
			expected: "Failed to start playback: no audio device",
		},
		{
			name:     "sync operation",
			op:       OpSessionSync,
			err:      errors.New("timeout"),
			expected: "Failed to sync listening progress: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpItemLoad,
			context:  "The Test Book",
			err:      nil,
			expected: "",
		},
		{
			name:     "includes context",
			op:       OpItemLoad,
			context:  "The Test Book",
			err:      errors.New("not found"),
			expected: "Failed to load item 'The Test Book': not found",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpSessionClose,
			context:  "",
			err:      errors.New("timeout"),
			expected: "Failed to close playback session: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}
