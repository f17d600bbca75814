// Package loader provides the page sources a pagination store loads from.
//
// Every source implements Loader. Two adapters cover the usual source
// shapes:
//
//   - Sequence wraps a function that returns the items of a page.
//   - Decoded wraps a function that returns an *http.Response and decodes
//     it with a Decoder (JSONDecoder reads a JSON array body and the
//     X-Total-Pages header).
//
// HTTPSource is a complete Decoded source for paged JSON endpoints with
// retries (exponential backoff with jitter per error class), a circuit
// breaker and an optional rate budget gate:
//
//	src, err := loader.NewHTTPSource[Item](loader.DefaultConfig("http://localhost:8080"), nil)
//	res, err := src.Load(ctx, loader.Request{Page: 2, Query: "go"})
//
// Cached puts a Redis page cache in front of any loader and Warm prefetches
// a range of pages through it.
//
// Failures are reported as *pagination.LoadError, decode failures as
// *pagination.DecodeError.
package loader
