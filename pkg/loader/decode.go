package loader

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// HeaderTotalPages carries the page count of a listing.
const HeaderTotalPages = "X-Total-Pages"

// Decoder turns a successful response into a page.
type Decoder[T any] interface {
	Decode(resp *http.Response) (Result[T], error)
}

// JSONDecoder reads a JSON array body and the page count header.
type JSONDecoder[T any] struct {
	// TotalPagesHeader defaults to HeaderTotalPages.
	TotalPagesHeader string
}

// Decode implements Decoder.
func (d JSONDecoder[T]) Decode(resp *http.Response) (Result[T], error) {
	header := d.TotalPagesHeader
	if header == "" {
		header = HeaderTotalPages
	}

	total := 0
	if v := resp.Header.Get(header); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Result[T]{}, fmt.Errorf("invalid %s header %q", header, v)
		}
		total = n
	}

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Result[T]{}, fmt.Errorf("decode items: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, TotalPages: total}, nil
}
