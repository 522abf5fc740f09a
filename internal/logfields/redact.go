package logfields

import "net/url"

// redactURL strips userinfo so tokens embedded in remote URLs never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}
