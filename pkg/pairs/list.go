package pairs

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"mercator-hq/callisto/pkg/dict"
)

// ListName identifies one of a request's attribute lists.
type ListName string

const (
	ListRequest ListName = "request"
	ListReply   ListName = "reply"
	ListControl ListName = "control"
)

// ListNames are the valid list names in evaluation order.
var ListNames = []ListName{ListRequest, ListReply, ListControl}

// ParseListName validates a list name.
func ParseListName(s string) (ListName, bool) {
	for _, n := range ListNames {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Pair is an attribute with its value.
type Pair struct {
	Attr  *dict.Attribute
	Value cty.Value
}

func (p *Pair) String() string {
	return fmt.Sprintf("%s = %s", p.Attr.Name, Format(p.Attr, p.Value))
}

// List is an ordered list of pairs. It is not safe for concurrent use; a
// request's lists are only touched by the goroutine advancing the request.
type List struct {
	pairs []*Pair
}

// Add appends a value after conforming it to the attribute type.
func (l *List) Add(attr *dict.Attribute, v cty.Value) error {
	cv, err := Conform(attr, v)
	if err != nil {
		return err
	}
	l.pairs = append(l.pairs, &Pair{Attr: attr, Value: cv})
	return nil
}

// Set replaces the first instance of attr, or appends it.
func (l *List) Set(attr *dict.Attribute, v cty.Value) error {
	cv, err := Conform(attr, v)
	if err != nil {
		return err
	}
	for _, p := range l.pairs {
		if strings.EqualFold(p.Attr.Name, attr.Name) {
			p.Value = cv
			return nil
		}
	}
	l.pairs = append(l.pairs, &Pair{Attr: attr, Value: cv})
	return nil
}

// Find returns the first pair for the named attribute.
func (l *List) Find(name string) (*Pair, bool) {
	for _, p := range l.pairs {
		if strings.EqualFold(p.Attr.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// Delete removes every instance of the named attribute and returns how many
// were removed.
func (l *List) Delete(name string) int {
	kept := l.pairs[:0]
	removed := 0
	for _, p := range l.pairs {
		if strings.EqualFold(p.Attr.Name, name) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(l.pairs); i++ {
		l.pairs[i] = nil
	}
	l.pairs = kept
	return removed
}

// All returns the pairs in list order.
func (l *List) All() []*Pair {
	return l.pairs
}

// Len returns the number of pairs.
func (l *List) Len() int {
	return len(l.pairs)
}

// Object returns the list as a cty object keyed by attribute name. Only the
// first instance of a repeated attribute is visible.
func (l *List) Object() cty.Value {
	if len(l.pairs) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(l.pairs))
	for _, p := range l.pairs {
		if _, seen := attrs[p.Attr.Name]; !seen {
			attrs[p.Attr.Name] = p.Value
		}
	}
	return cty.ObjectVal(attrs)
}

// Lists is the set of attribute lists carried by a request.
type Lists struct {
	Request *List
	Reply   *List
	Control *List
}

// NewLists returns empty lists.
func NewLists() *Lists {
	return &Lists{Request: &List{}, Reply: &List{}, Control: &List{}}
}

// Get returns the named list.
func (ls *Lists) Get(name ListName) (*List, bool) {
	switch name {
	case ListRequest:
		return ls.Request, true
	case ListReply:
		return ls.Reply, true
	case ListControl:
		return ls.Control, true
	}
	return nil, false
}

// Variables returns the lists as HCL evaluation variables.
func (ls *Lists) Variables() map[string]cty.Value {
	return map[string]cty.Value{
		string(ListRequest): ls.Request.Object(),
		string(ListReply):   ls.Reply.Object(),
		string(ListControl): ls.Control.Object(),
	}
}
