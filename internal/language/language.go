package language

import (
	"errors"
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnknown reports a hint that cannot be mapped to a transcribable language.
var ErrUnknown = errors.New("unknown language")

// whisperBases lists the ISO 639-1 codes the speech engine can transcribe.
var whisperBases = strings.Fields(`
	af am ar as az ba be bg bn bo br bs ca cs cy da de el en es et eu fa fi fo
	fr gl gu ha he hi hr ht hu hy id is it ja ka kk km kn ko la lb ln lo lt lv
	mg mi mk ml mn mr ms mt my ne nl nn no oc pa pl ps pt ro ru sa sd si sk sl
	sn so sq sr su sv sw ta te tg th tk tl tr tt uk ur uz vi yi yo zh`)

// aliases covers bibliographic ISO 639-2 codes and informal names that
// x/text does not resolve.
var aliases = map[string]string{
	"chi":      "zh",
	"dut":      "nl",
	"fre":      "fr",
	"ger":      "de",
	"espanol":  "es",
	"español":  "es",
	"mandarin": "zh",
}

var (
	supported = make(map[string]struct{}, len(whisperBases))
	byName    = make(map[string]string, len(whisperBases))
)

func init() {
	names := display.English.Languages()
	for _, code := range whisperBases {
		supported[code] = struct{}{}
		base := xlanguage.MustParseBase(code)
		if name := names.Name(base); name != "" {
			byName[strings.ToLower(name)] = code
		}
	}
}

// Normalize reduces a caller hint to the ISO 639-1 code passed to inference.
// Empty, "auto", and "detect" mean auto-detect and yield "".
func Normalize(hint string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(hint))
	switch key {
	case "", "auto", "detect":
		return "", nil
	}
	if code, ok := resolve(key); ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, hint)
}

// ToISO2 is Normalize without the error: unrecognized input yields "".
func ToISO2(code string) string {
	normalized, _ := Normalize(code)
	return normalized
}

// DisplayName returns the English name for a code, "Unknown" for empty input,
// or the uppercased input when nothing matches.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if resolved, ok := resolve(strings.ToLower(trimmed)); ok {
		if name := display.English.Languages().Name(xlanguage.MustParseBase(resolved)); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}

func resolve(key string) (string, bool) {
	if code, ok := aliases[key]; ok {
		return code, true
	}
	if code, ok := byName[key]; ok {
		return code, true
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(key, "_", "-"))
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == xlanguage.No {
		return "", false
	}
	if _, ok := supported[base.String()]; !ok {
		return "", false
	}
	return base.String(), true
}
