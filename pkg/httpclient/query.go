package httpclient

import (
	"net/url"
	"strings"
)

// Param is a single query string pair.
type Param struct {
	Name  string
	Value string
}

// Query is an ordered list of query parameters. Unlike url.Values it keeps
// insertion order when encoded.
type Query []Param

// Add appends a parameter.
func (q *Query) Add(name, value string) {
	*q = append(*q, Param{Name: name, Value: value})
}

// Get returns the first value stored for name.
func (q Query) Get(name string) (string, bool) {
	for _, p := range q {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Names lists parameter names in order.
func (q Query) Names() []string {
	out := make([]string, 0, len(q))
	for _, p := range q {
		out = append(out, p.Name)
	}
	return out
}

// Encode renders the query as "a=1&b=2" in insertion order.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
