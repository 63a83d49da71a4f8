package wave

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Result is a decoded service response: either *JSONResult or *XMLResult,
// depending on the format the request was made with.
type Result interface {
	Format() Format
	// Raw returns the undecoded response body.
	Raw() []byte

	// failure reports the service-side error message when the payload
	// carries success=false.
	failure() (string, bool)
}

// JSONResult holds a JSON response decoded into generic Go values.
type JSONResult struct {
	Data any
	raw  []byte
}

func (r *JSONResult) Format() Format { return FormatJSON }
func (r *JSONResult) Raw() []byte    { return r.raw }

// Object returns the top-level JSON object, if the payload is one.
func (r *JSONResult) Object() (map[string]any, bool) {
	obj, ok := r.Data.(map[string]any)
	return obj, ok
}

func (r *JSONResult) failure() (string, bool) {
	obj, ok := r.Object()
	if !ok {
		return "", false
	}
	// the live API nests the flag under "status"
	if _, top := obj["success"]; !top {
		if status, ok := obj["status"].(map[string]any); ok {
			obj = status
		}
	}
	success, ok := obj["success"].(bool)
	if !ok || success {
		return "", false
	}
	if msg, ok := obj["error"].(string); ok && msg != "" {
		return msg, true
	}
	return defaultServiceMessage, true
}

// XMLResult holds an XML response as a generic element tree.
type XMLResult struct {
	Root *XMLNode
	raw  []byte
}

func (r *XMLResult) Format() Format { return FormatXML }
func (r *XMLResult) Raw() []byte    { return r.raw }

func (r *XMLResult) failure() (string, bool) {
	if r.Root == nil {
		return "", false
	}
	node := r.Root
	if node.Child("success") == nil {
		if status := node.Child("status"); status != nil {
			node = status
		}
	}
	success, ok := node.ChildText("success")
	if !ok || success != "false" {
		return "", false
	}
	if msg, ok := node.ChildText("error"); ok && msg != "" {
		return msg, true
	}
	return defaultServiceMessage, true
}

// XMLNode is one element of a decoded XML document. Text is the element's
// character data with surrounding whitespace removed.
type XMLNode struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*XMLNode
}

// Child returns the first direct child element called name.
func (n *XMLNode) Child(name string) *XMLNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the first direct child called name.
func (n *XMLNode) ChildText(name string) (string, bool) {
	c := n.Child(name)
	if c == nil {
		return "", false
	}
	return c.Text, true
}

// decoder turns a raw body into a Result for one format.
type decoder interface {
	decode(body []byte) (Result, error)
}

type jsonDecoder struct{}

func (jsonDecoder) decode(body []byte) (Result, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &DecodeError{Format: FormatJSON, Err: err}
	}
	return &JSONResult{Data: data, raw: body}, nil
}

type xmlDecoder struct{}

func (xmlDecoder) decode(body []byte) (Result, error) {
	root, err := parseXMLTree(body)
	if err != nil {
		return nil, &DecodeError{Format: FormatXML, Err: err}
	}
	return &XMLResult{Root: root, raw: body}, nil
}

func decoderFor(f Format) decoder {
	if f == FormatXML {
		return xmlDecoder{}
	}
	return jsonDecoder{}
}

func parseXMLTree(body []byte) (*XMLNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		root  *XMLNode
		stack []*XMLNode
		texts []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, errors.New("multiple root elements")
			}
			node := &XMLNode{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			node := stack[len(stack)-1]
			node.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}

	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}
