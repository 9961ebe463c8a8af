package books

import "errors"

// ErrNotFound is returned by [Client.GetByID] when the catalogue has no book
// with the requested ID.
var ErrNotFound = errors.New("book not found")
