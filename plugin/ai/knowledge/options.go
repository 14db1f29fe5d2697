package knowledge

// SearchOption customizes a single search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK     int
	docTypes []string
	filters  map[string]any
}

// WithTopK sets the maximum number of results to return.
func WithTopK(topK int) SearchOption {
	return func(o *searchOptions) {
		o.topK = topK
	}
}

// WithTypeFilter restricts results to the given document types.
func WithTypeFilter(docTypes ...string) SearchOption {
	return func(o *searchOptions) {
		o.docTypes = docTypes
	}
}

// WithFilter adds a metadata filter. A scalar value requires equality;
// a slice value matches when the document's value is in the set. List
// valued metadata (e.g. personas) matches on any common element.
func WithFilter(key string, value any) SearchOption {
	return func(o *searchOptions) {
		if o.filters == nil {
			o.filters = map[string]any{}
		}
		o.filters[key] = value
	}
}
