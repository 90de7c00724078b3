package protocol

import "strings"

// The simulation-side script loader only evaluates files of the form
// `return '<payload>'`, so command messages are wrapped before being
// written to the mailbox.

const (
	scriptPrefix = "return '"
	scriptSuffix = "'"
)

// WrapScript frames a payload for the script loader.
func WrapScript(payload string) string {
	return scriptPrefix + payload + scriptSuffix
}

// UnwrapScript strips the script framing. Unframed text is returned
// unchanged so raw payloads keep working.
func UnwrapScript(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, scriptPrefix) && strings.HasSuffix(t, scriptSuffix) && len(t) > len(scriptPrefix) {
		return t[len(scriptPrefix) : len(t)-len(scriptSuffix)]
	}
	return text
}
