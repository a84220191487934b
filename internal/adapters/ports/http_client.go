package ports

import "net/http"

// HTTPClient is the slice of *http.Client the provider adapter needs, so tests can stub transport
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
