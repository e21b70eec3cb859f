package resilience

import (
	"errors"
	"net/url"
)

// RedactURLError strips the query string and user info from the URL carried
// by a *url.Error. Provider tokens travel as query parameters and the error
// text ends up in logs and in GET /v1/ops/status.
func RedactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := "[redacted]"
	if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
		u.RawQuery = ""
		u.ForceQuery = false
		u.User = nil
		redacted = u.String()
	}
	return &url.Error{Op: urlErr.Op, URL: redacted, Err: urlErr.Err}
}
