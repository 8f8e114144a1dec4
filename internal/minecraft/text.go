package minecraft

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	sectionSign = '§'
	ansiReset   = "\x1b[0m"
)

var ansiCodes = map[rune]string{
	'0': "\x1b[30m",
	'1': "\x1b[34m",
	'2': "\x1b[32m",
	'3': "\x1b[36m",
	'4': "\x1b[31m",
	'5': "\x1b[35m",
	'6': "\x1b[33m",
	'7': "\x1b[37m",
	'8': "\x1b[90m",
	'9': "\x1b[94m",
	'a': "\x1b[92m",
	'b': "\x1b[96m",
	'c': "\x1b[91m",
	'd': "\x1b[95m",
	'e': "\x1b[93m",
	'f': "\x1b[97m",
	'r': ansiReset,
	'l': "\x1b[1m",
	'n': "\x1b[4m",
	'o': "\x1b[3m",
	'm': "\x1b[9m",
	'k': "", // obfuscated has no terminal equivalent
}

// colorCodes maps chat component colour names to their legacy format code.
var colorCodes = map[string]rune{
	"black":        '0',
	"dark_blue":    '1',
	"dark_green":   '2',
	"dark_aqua":    '3',
	"dark_red":     '4',
	"dark_purple":  '5',
	"gold":         '6',
	"gray":         '7',
	"dark_gray":    '8',
	"blue":         '9',
	"green":        'a',
	"aqua":         'b',
	"red":          'c',
	"light_purple": 'd',
	"yellow":       'e',
	"white":        'f',
}

// EscapeToANSI rewrites § format codes as ANSI escape sequences. Unknown codes
// are dropped. The result always ends with a reset.
func EscapeToANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(ansiReset))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == sectionSign && i+1 < len(runes) {
			i++
			b.WriteString(ansiCodes[toLower(runes[i])])
			continue
		}
		b.WriteRune(runes[i])
	}
	b.WriteString(ansiReset)
	return b.String()
}

// StripFormatting removes § format codes and leaves the plain text.
func StripFormatting(s string) string {
	if !strings.ContainsRune(s, sectionSign) {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == sectionSign && i+1 < len(runes) {
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

type chatComponent struct {
	Text          string            `json:"text"`
	Translate     string            `json:"translate"`
	Color         string            `json:"color"`
	Bold          bool              `json:"bold"`
	Italic        bool              `json:"italic"`
	Underlined    bool              `json:"underlined"`
	Strikethrough bool              `json:"strikethrough"`
	Obfuscated    bool              `json:"obfuscated"`
	Extra         []json.RawMessage `json:"extra"`
}

// FlattenChat converts a status description into a legacy §-coded string.
// The description may be a plain string, a chat component object with nested
// extra components, or an array of either. Anything else flattens to "".
func FlattenChat(raw json.RawMessage) string {
	var b strings.Builder
	flattenChat(&b, raw, 0)
	return b.String()
}

const maxChatDepth = 32

func flattenChat(b *strings.Builder, raw json.RawMessage, depth int) {
	raw = bytes.TrimSpace(raw)
	if depth > maxChatDepth || len(raw) == 0 {
		return
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			b.WriteString(s)
		}
	case '[':
		var parts []json.RawMessage
		if json.Unmarshal(raw, &parts) == nil {
			for _, p := range parts {
				flattenChat(b, p, depth+1)
			}
		}
	case '{':
		var c chatComponent
		// Partially typed components still contribute what decoded.
		_ = json.Unmarshal(raw, &c)
		if code, ok := colorCodes[c.Color]; ok {
			b.WriteRune(sectionSign)
			b.WriteRune(code)
		}
		for _, style := range []struct {
			on   bool
			code rune
		}{
			{c.Bold, 'l'},
			{c.Italic, 'o'},
			{c.Underlined, 'n'},
			{c.Strikethrough, 'm'},
			{c.Obfuscated, 'k'},
		} {
			if style.on {
				b.WriteRune(sectionSign)
				b.WriteRune(style.code)
			}
		}
		if c.Text != "" {
			b.WriteString(c.Text)
		} else {
			b.WriteString(c.Translate)
		}
		for _, extra := range c.Extra {
			flattenChat(b, extra, depth+1)
		}
	}
}
