package stock

import "errors"

// ErrStaleFetch is returned when a fetch result arrives after a newer reference selection
// superseded it. Callers drop it silently.
var ErrStaleFetch = errors.New("stock: fetch result superseded by a newer selection")
