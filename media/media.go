/*
Package media uploads opaque image files and returns stable URLs.

PURPOSE:
  The ledger stores only URLs for wallet icons, receipt images, and
  profile pictures; this package owns getting a file from the client to a
  place those URLs can point at. Two implementations: an unsigned
  Cloudinary-style HTTP endpoint (production) and a local uploads
  directory (dev/tests).

IDEMPOTENT PASS-THROUGH:
  A File that already carries a URL is returned unchanged without any
  network call, so callers can hand a previously persisted value straight
  back through an update path.
*/
package media

import "context"

// File is either a reference to already-hosted content (URL set) or raw
// content to upload (Name + Content set).
type File struct {
	URL     string
	Name    string
	Content []byte
}

// IsZero reports whether there is nothing to upload or pass through.
func (f File) IsZero() bool {
	return f.URL == "" && len(f.Content) == 0
}

// Uploader persists a file under a folder and returns its permanent URL.
type Uploader interface {
	Upload(ctx context.Context, file File, folder string) (string, error)
}
