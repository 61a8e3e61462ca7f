package storage

import "context"

// ObjectStore is the application-owned media store. Uploads return a public
// address; Owns reports whether an address points into this store, which is
// what makes a media reference trusted for vision input.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (publicURL string, err error)
	Fetch(ctx context.Context, publicURL string) (data []byte, contentType string, err error)
	Owns(publicURL string) bool
}
