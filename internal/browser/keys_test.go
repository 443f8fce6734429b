package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		desc      string
		modifiers []input.Key
		key       input.Key
		printable bool
	}{
		{"Enter", nil, input.Enter, false},
		{"escape", nil, input.Escape, false},
		{"a", nil, input.Key('a'), true},
		{"Control+A", []input.Key{input.ControlLeft}, input.Key('A'), false},
		{"ctrl+shift+ArrowLeft", []input.Key{input.ControlLeft, input.ShiftLeft}, input.ArrowLeft, false},
		{"+", nil, input.Key('+'), true},
		{"Shift++", []input.Key{input.ShiftLeft}, input.Key('+'), false},
		{"Meta+Space", []input.Key{input.MetaLeft}, input.Space, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, err := parseChord(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.modifiers, c.modifiers)
			assert.Equal(t, tt.key, c.key)
			assert.Equal(t, tt.printable, c.printable)
		})
	}
}

func TestParseChordErrors(t *testing.T) {
	for _, desc := range []string{"", "  ", "Hyper+A", "NotAKey", "Control+"} {
		_, err := parseChord(desc)
		assert.Error(t, err, "desc %q", desc)
	}
}
