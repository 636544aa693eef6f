// Package provider talks to the external network data and optimization
// providers.
//
// The network snapshot comes either from an HTTP data API (Client) or from a
// local file in any codec format (FileProvider). Optimization results always
// come from the HTTP optimizer. FetchAll retrieves both concurrently.
package provider
