package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/input"
)

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"up":         input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"down":       input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"left":       input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"right":      input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"space":      input.Space,
}

var modifierKeys = map[string]input.Key{
	"shift":   input.ShiftLeft,
	"control": input.ControlLeft,
	"ctrl":    input.ControlLeft,
	"alt":     input.AltLeft,
	"option":  input.AltLeft,
	"meta":    input.MetaLeft,
	"cmd":     input.MetaLeft,
	"command": input.MetaLeft,
}

// chord is a parsed key press such as "Control+Shift+A".
type chord struct {
	modifiers []input.Key
	key       input.Key
	// printable is set for single-character keys without modifiers, which
	// are typed rather than pressed.
	printable bool
}

// parseChord parses a key description. Names are case-insensitive; a
// trailing "+" names the plus key itself ("Shift++").
func parseChord(desc string) (chord, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return chord{}, fmt.Errorf("key is required")
	}

	var parts []string
	switch {
	case desc == "+":
		parts = []string{"+"}
	case strings.HasSuffix(desc, "++"):
		parts = append(strings.Split(strings.TrimSuffix(desc, "++"), "+"), "+")
	default:
		parts = strings.Split(desc, "+")
	}

	var c chord
	for _, name := range parts[:len(parts)-1] {
		mod, ok := modifierKeys[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return chord{}, fmt.Errorf("unknown modifier %q in %q", name, desc)
		}
		c.modifiers = append(c.modifiers, mod)
	}

	last := parts[len(parts)-1]
	if k, ok := namedKeys[strings.ToLower(last)]; ok {
		c.key = k
		return c, nil
	}
	if utf8.RuneCountInString(last) == 1 {
		r, _ := utf8.DecodeRuneInString(last)
		c.key = input.Key(r)
		c.printable = len(c.modifiers) == 0
		return c, nil
	}
	return chord{}, fmt.Errorf("unknown key %q", last)
}
