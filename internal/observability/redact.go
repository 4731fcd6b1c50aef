package observability

import (
	"errors"
	"net/url"
)

// RedactURLError strips the query string and user info from the URL carried by a
// *url.Error so credentials passed as query parameters never reach logs or error text.
// The wrapped cause is kept, so errors.Is and Timeout still work. Other errors are
// returned unchanged.
func RedactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	redacted := "[redacted]"
	if u, perr := url.Parse(uerr.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		redacted = u.String()
	}
	return &url.Error{Op: uerr.Op, URL: redacted, Err: uerr.Err}
}
