package domain

import "errors"

// ErrNoComic is returned by a comic source when the page could be fetched
// but no strip was found on it.
var ErrNoComic = errors.New("no comic found")

// FetchedComic is one strip as produced by a comic source, before it is
// fingerprinted and stored.
type FetchedComic struct {
	// Date is the publish date in YYYY-MM-DD form.
	Date string
	// URL is where the image bytes were downloaded from.
	URL string
	// Bytes holds the raw image.
	Bytes []byte
}
