package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
}

func TestMessagesEnglish(t *testing.T) {
	msg := messagesFor(localeEnglish)
	require.Equal(t, "Listening…", msg.recording)
	require.Equal(t, "Thinking…", msg.processing)
	require.Equal(t, "Speaking…", msg.speaking)
	require.Equal(t, "Something went wrong", msg.errorText)
}
