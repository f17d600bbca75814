package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Sternrassler/lazyload/pkg/pagination"
)

// Request identifies one page of a listing.
type Request struct {
	Page  int
	Query string
}

// Result is one loaded page.
type Result[T any] struct {
	Items []T

	// TotalPages is the page count reported by the source, 0 if unknown.
	TotalPages int
}

// Loader loads pages.
type Loader[T any] interface {
	Load(ctx context.Context, req Request) (Result[T], error)
}

// Func adapts a function to Loader.
type Func[T any] func(ctx context.Context, req Request) (Result[T], error)

// Load calls f.
func (f Func[T]) Load(ctx context.Context, req Request) (Result[T], error) {
	return f(ctx, req)
}

// Sequence adapts a function that returns the items of a page directly.
// Such sources do not report a page count.
func Sequence[T any](fn func(ctx context.Context, page int, query string) ([]T, error)) Loader[T] {
	return Func[T](func(ctx context.Context, req Request) (Result[T], error) {
		items, err := fn(ctx, req.Page, req.Query)
		if err != nil {
			return Result[T]{}, wrapLoadError(req, err)
		}
		return Result[T]{Items: items}, nil
	})
}

// FetchFunc returns the raw response for a page.
type FetchFunc func(ctx context.Context, req Request) (*http.Response, error)

// Decoded adapts a function that returns an HTTP response; the body is
// decoded by dec (JSONDecoder when nil) and always closed.
func Decoded[T any](fetch FetchFunc, dec Decoder[T]) Loader[T] {
	if dec == nil {
		dec = JSONDecoder[T]{}
	}
	return Func[T](func(ctx context.Context, req Request) (Result[T], error) {
		resp, err := fetch(ctx, req)
		if err != nil {
			return Result[T]{}, wrapLoadError(req, err)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Result[T]{}, wrapLoadError(req, &HTTPError{
				StatusCode: resp.StatusCode,
				Class:      classifyStatus(resp.StatusCode),
				Message:    resp.Status,
			})
		}

		res, err := dec.Decode(resp)
		if err != nil {
			return Result[T]{}, pagination.NewDecodeError(req.Page, req.Query, err)
		}
		return res, nil
	})
}

// LoadFunc binds l to query for use with pagination.Store.Advance. A
// reported page count is passed to onTotal when it is non-nil.
func LoadFunc[T any](l Loader[T], query string, onTotal func(int)) pagination.LoadFunc[T] {
	return func(ctx context.Context, page int) ([]T, error) {
		res, err := l.Load(ctx, Request{Page: page, Query: query})
		if err != nil {
			return nil, err
		}
		if onTotal != nil && res.TotalPages > 0 {
			onTotal(res.TotalPages)
		}
		return res.Items, nil
	}
}

// PagedFunc binds l to query for use with pagination.Store.AdvancePaged,
// which commits the reported page count together with the page.
func PagedFunc[T any](l Loader[T], query string) pagination.PagedLoadFunc[T] {
	return func(ctx context.Context, page int) ([]T, int, error) {
		res, err := l.Load(ctx, Request{Page: page, Query: query})
		if err != nil {
			return nil, 0, err
		}
		return res.Items, res.TotalPages, nil
	}
}

func wrapLoadError(req Request, err error) error {
	var le *pagination.LoadError
	if errors.As(err, &le) {
		return err
	}
	return &pagination.LoadError{Page: req.Page, Query: req.Query, Err: err}
}

// String formats the request for logs.
func (r Request) String() string {
	if r.Query == "" {
		return fmt.Sprintf("page %d", r.Page)
	}
	return fmt.Sprintf("page %d (query %q)", r.Page, r.Query)
}
