package cli

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/dict"
	"mercator-hq/callisto/pkg/pairs"
)

// RequestDoc is one document of a request file:
//
//	id: acct-1
//	section: accounting
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//	request:
//	  User-Name: bob
//	  Acct-Status-Type: Start
//	  Class: [0x01, 0x02]
//
// Attribute order is kept. A sequence adds one pair per element.
type RequestDoc struct {
	ID          string    `yaml:"id"`
	Section     string    `yaml:"section"`
	Traceparent string    `yaml:"traceparent"`
	Request     yaml.Node `yaml:"request"`
	Reply       yaml.Node `yaml:"reply"`
	Control     yaml.Node `yaml:"control"`
}

// ReadRequests decodes every document in r. Documents without a section
// get defaultSection.
func ReadRequests(r io.Reader, defaultSection string) ([]RequestDoc, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var docs []RequestDoc
	for {
		var doc RequestDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", len(docs)+1, err)
		}
		if doc.Section == "" {
			doc.Section = defaultSection
		}
		if doc.Section == "" {
			return nil, fmt.Errorf("request %d: section is required", len(docs)+1)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Lists builds the request's attribute lists. Attribute names must exist in
// d.
func (doc *RequestDoc) Lists(d *dict.Dictionary) (*pairs.Lists, error) {
	lists := pairs.NewLists()
	for _, src := range []struct {
		name pairs.ListName
		node *yaml.Node
	}{
		{pairs.ListRequest, &doc.Request},
		{pairs.ListReply, &doc.Reply},
		{pairs.ListControl, &doc.Control},
	} {
		list, _ := lists.Get(src.name)
		if err := fillList(list, d, src.node); err != nil {
			return nil, fmt.Errorf("%s list: %w", src.name, err)
		}
	}
	return lists, nil
}

// Carrier returns the trace context headers of the request.
func (doc *RequestDoc) Carrier() map[string]string {
	if doc.Traceparent == "" {
		return nil
	}
	return map[string]string{"traceparent": doc.Traceparent}
}

func fillList(list *pairs.List, d *dict.Dictionary, node *yaml.Node) error {
	switch node.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: expected a mapping of attributes", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		attr, ok := d.Lookup(key.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown attribute %q", key.Line, key.Value)
		}

		values := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			values = val.Content
		}
		for _, v := range values {
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: %s: expected a scalar value", v.Line, attr.Name)
			}
			cv, err := pairs.ParseValue(attr, v.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", v.Line, err)
			}
			if err := list.Add(attr, cv); err != nil {
				return fmt.Errorf("line %d: %w", v.Line, err)
			}
		}
	}
	return nil
}
