package transport

import (
	"errors"
	"net/url"
	"strings"
)

const redacted = "REDACTED"

// sensitiveParams are query parameters whose values never appear in errors
// or logs.
var sensitiveParams = []string{"api_key", "apikey", "key", "token", "access_token"}

// RedactURL returns u as a string with credential query values and userinfo
// passwords masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	cp := *u
	if cp.RawQuery != "" {
		q := cp.Query()
		changed := false
		for name := range q {
			if isSensitive(name) {
				q.Set(name, redacted)
				changed = true
			}
		}
		if changed {
			cp.RawQuery = q.Encode()
		}
	}
	return cp.Redacted()
}

// RedactRawURL is RedactURL for unparsed input. Unparseable input is
// replaced entirely.
func RedactRawURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return RedactURL(u)
}

// redactError rewrites the URL carried by a *url.Error, which net/http embeds
// in every client error message.
func redactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = RedactRawURL(ue.URL)
	}
	return err
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, s := range sensitiveParams {
		if name == s {
			return true
		}
	}
	return false
}
