package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording  string
	processing string
	speaking   string
	errorText  string
}

func messagesFromEnv() messages {
	return messagesFor(resolveLocale(os.Getenv("LANG")))
}

// resolveLocale maps $LANG to a supported message table.
func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(raw, "en"):
		return localeEnglish
	default:
		return localeEnglish
	}
}

func messagesFor(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording:  "Listening…",
			processing: "Thinking…",
			speaking:   "Speaking…",
			errorText:  "Something went wrong",
		}
	}
}
