// Package keys samples physical key state and turns it into push-to-talk edges.
package keys

import (
	"fmt"
	"sort"
	"strings"
)

// Code is a Linux input event key code (KEY_* in linux/input-event-codes.h).
type Code uint16

// maxCode is KEY_MAX; key state bitmaps cover [0, maxCode].
const maxCode Code = 0x2ff

const (
	CodeEsc   Code = 1
	CodeSpace Code = 57
)

var namedCodes = map[string]Code{
	"esc": 1, "1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"minus": 12, "equal": 13, "backspace": 14, "tab": 15,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20, "y": 21, "u": 22, "i": 23, "o": 24, "p": 25,
	"leftbrace": 26, "rightbrace": 27, "enter": 28, "leftctrl": 29,
	"a": 30, "s": 31, "d": 32, "f": 33, "g": 34, "h": 35, "j": 36, "k": 37, "l": 38,
	"semicolon": 39, "apostrophe": 40, "grave": 41, "leftshift": 42, "backslash": 43,
	"z": 44, "x": 45, "c": 46, "v": 47, "b": 48, "n": 49, "m": 50,
	"comma": 51, "dot": 52, "slash": 53, "rightshift": 54, "kpasterisk": 55, "leftalt": 56,
	"space": 57, "capslock": 58,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64, "f7": 65, "f8": 66, "f9": 67, "f10": 68,
	"numlock": 69, "scrolllock": 70, "f11": 87, "f12": 88,
	"rightctrl": 97, "sysrq": 99, "rightalt": 100,
	"home": 102, "up": 103, "pageup": 104, "left": 105, "right": 106,
	"end": 107, "down": 108, "pagedown": 109, "insert": 110, "delete": 111,
	"pause": 119, "leftmeta": 125, "rightmeta": 126, "compose": 127,
	"f13": 183, "f14": 184, "f15": 185, "f16": 186, "f17": 187, "f18": 188,
	"f19": 189, "f20": 190, "f21": 191, "f22": 192, "f23": 193, "f24": 194,
}

var aliases = map[string]string{
	"escape":  "esc",
	"return":  "enter",
	"ctrl":    "leftctrl",
	"control": "leftctrl",
	"shift":   "leftshift",
	"alt":     "leftalt",
	"altgr":   "rightalt",
	"super":   "leftmeta",
	"meta":    "leftmeta",
	"period":  "dot",
	"del":     "delete",
}

// ParseKey resolves a configured key name such as "space", "ESC" or
// "KEY_F13" to its event code.
func ParseKey(name string) (Code, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.TrimPrefix(normalized, "key_")
	if normalized == "" {
		return 0, fmt.Errorf("key name must not be empty")
	}
	if alias, ok := aliases[normalized]; ok {
		normalized = alias
	}
	code, ok := namedCodes[normalized]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return code, nil
}

// Name returns the canonical name for code, or a numeric form when unnamed.
func (c Code) Name() string {
	for name, code := range namedCodes {
		if code == c {
			return name
		}
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

func (c Code) String() string {
	return c.Name()
}

// KnownNames lists every key name ParseKey accepts, aliases excluded.
func KnownNames() []string {
	names := make([]string, 0, len(namedCodes))
	for name := range namedCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
