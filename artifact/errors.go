package artifact

import "fmt"

var (
	// ErrNotFound is returned when a document for the given scope / id pair
	// does not exist in the store.
	ErrNotFound = fmt.Errorf("document not found")
)
