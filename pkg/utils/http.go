package utils

import "io"

// DrainAndClose finishes reading a response body and closes it so the
// transport can reuse the underlying connection. The drain is capped; if an
// error body somehow exceeds it, giving up the connection beats reading on.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	return rc.Close()
}
