package cache

import "testing"

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "first page no query",
			key:  Key{Endpoint: "/items", Page: 1},
			want: "lazyload:items:page=1:q=",
		},
		{
			name: "trailing slash trimmed",
			key:  Key{Endpoint: "/v1/items/", Page: 3},
			want: "lazyload:v1/items:page=3:q=",
		},
		{
			name: "query escaped",
			key:  Key{Endpoint: "/items", Page: 2, Query: "go tools"},
			want: "lazyload:items:page=2:q=go+tools",
		},
		{
			name: "colon in query cannot forge a segment",
			key:  Key{Endpoint: "/items", Page: 1, Query: "a:page=9"},
			want: "lazyload:items:page=1:q=a%3Apage%3D9",
		},
		{
			name: "empty endpoint",
			key:  Key{Page: 1},
			want: "lazyload:page=1:q=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key{Endpoint: "/items", Page: 4, Query: "x"}
	b := Key{Endpoint: "items/", Page: 4, Query: "x"}

	if a.String() != b.String() {
		t.Errorf("keys differ: %q vs %q", a.String(), b.String())
	}
}

func TestEndpointPrefix(t *testing.T) {
	key := Key{Endpoint: "/items", Page: 7, Query: "q"}
	prefix := EndpointPrefix("/items")

	if prefix != "lazyload:items:" {
		t.Errorf("EndpointPrefix() = %q, want %q", prefix, "lazyload:items:")
	}
	if got := key.String()[:len(prefix)]; got != prefix {
		t.Errorf("key %q does not start with prefix %q", key.String(), prefix)
	}
}
