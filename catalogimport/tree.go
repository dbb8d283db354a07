package catalogimport

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/catalog_backend/utils"
)

var (
	ErrDuplicateItem = errors.New("duplicate line item code")
	ErrItemNoParent  = errors.New("line item code has no parent category")
)

// Node is one category in the arena. Parent and Children are arena indices.
type Node struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Level       int        `json:"level"`
	Line        int        `json:"line"`
	Synthesized bool       `json:"synthesized"`
	Parent      int        `json:"-"`
	Children    []int      `json:"-"`
	Items       []LineItem `json:"items,omitempty"`
}

// NameLookup resolves names for inferred categories from the reconstructed records.
// The first plausible occurrence of a code wins.
type NameLookup struct {
	names map[string]string
}

func NewNameLookup(records []Record) *NameLookup {
	names := make(map[string]string)
	for _, r := range records {
		code := r.Column(0)
		if !utils.IsCatalogCode(code) || !isPlausibleName(r.Column(1)) {
			continue
		}
		if _, seen := names[code]; !seen {
			names[code] = r.Column(1)
		}
	}
	return &NameLookup{names: names}
}

func (l *NameLookup) Name(code string) (string, bool) {
	if l == nil {
		return "", false
	}
	name, ok := l.names[code]
	return name, ok
}

// Builder assembles the category forest with an open-ancestor stack of arena indices.
type Builder struct {
	nodes     []Node
	roots     []int
	byCode    map[string]int
	stack     []int
	itemCodes map[string]bool
	lookup    *NameLookup
}

func NewBuilder(lookup *NameLookup) *Builder {
	return &Builder{
		byCode:    make(map[string]int),
		itemCodes: make(map[string]bool),
		lookup:    lookup,
	}
}

// AddCategory inserts an explicit category. It reports false when the code was
// already declared, in which case the stack is realigned onto the existing node.
// A node synthesized earlier for the same code takes over the explicit line.
func (b *Builder) AddCategory(c Category) bool {
	if idx, ok := b.byCode[c.Code]; ok {
		b.realign(idx)
		if !b.nodes[idx].Synthesized {
			return false
		}
		b.nodes[idx].Synthesized = false
		b.nodes[idx].Name = c.Name
		b.nodes[idx].Line = c.Line
		return true
	}
	for _, ancestor := range utils.AncestorCodes(c.Code) {
		b.ensure(ancestor)
	}
	b.insert(Node{Code: c.Code, Name: c.Name, Level: utils.CodeDepth(c.Code), Line: c.Line})
	return true
}

// AddItem synthesizes missing ancestors and appends the item to its direct parent.
func (b *Builder) AddItem(item LineItem) error {
	parentCode := utils.ParentCode(item.Code)
	if parentCode == "" {
		return fmt.Errorf("%s: %w", item.Code, ErrItemNoParent)
	}
	if b.itemCodes[item.Code] {
		return fmt.Errorf("%s: %w", item.Code, ErrDuplicateItem)
	}
	for _, ancestor := range utils.AncestorCodes(item.Code) {
		b.ensure(ancestor)
	}
	parent := b.byCode[parentCode]
	b.realign(parent)
	b.nodes[parent].Items = append(b.nodes[parent].Items, item)
	b.itemCodes[item.Code] = true
	return nil
}

// ensure returns the node for code, synthesizing it when absent.
// Callers insert ancestors shallowest first.
func (b *Builder) ensure(code string) int {
	if idx, ok := b.byCode[code]; ok {
		return idx
	}
	level := utils.CodeDepth(code)
	name, ok := b.lookup.Name(code)
	if !ok {
		name = placeholderName(code, level)
	}
	return b.insert(Node{Code: code, Name: name, Level: level, Synthesized: true})
}

func (b *Builder) insert(n Node) int {
	for len(b.stack) > 0 && b.nodes[b.top()].Level >= n.Level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	// the stack may point at an unrelated branch after out-of-order input
	if parentCode := utils.ParentCode(n.Code); parentCode != "" {
		if len(b.stack) == 0 || b.nodes[b.top()].Code != parentCode {
			b.realign(b.byCode[parentCode])
		}
	}

	idx := len(b.nodes)
	n.Parent = -1
	if len(b.stack) > 0 {
		n.Parent = b.top()
		b.nodes[n.Parent].Children = append(b.nodes[n.Parent].Children, idx)
	} else {
		b.roots = append(b.roots, idx)
	}
	b.nodes = append(b.nodes, n)
	b.byCode[n.Code] = idx
	b.stack = append(b.stack, idx)
	return idx
}

// realign rebuilds the stack as the root-to-idx path.
func (b *Builder) realign(idx int) {
	var path []int
	for i := idx; i >= 0; i = b.nodes[i].Parent {
		path = append(path, i)
	}
	b.stack = b.stack[:0]
	for i := len(path) - 1; i >= 0; i-- {
		b.stack = append(b.stack, path[i])
	}
}

func (b *Builder) top() int {
	return b.stack[len(b.stack)-1]
}

// Forest returns a read-only view of the built tree.
func (b *Builder) Forest() *Forest {
	return &Forest{nodes: b.nodes, roots: b.roots, byCode: b.byCode}
}

type Forest struct {
	nodes  []Node
	roots  []int
	byCode map[string]int
}

func (f *Forest) Roots() []int {
	return f.roots
}

func (f *Forest) Node(idx int) Node {
	return f.nodes[idx]
}

func (f *Forest) Len() int {
	return len(f.nodes)
}

func (f *Forest) Lookup(code string) (Node, bool) {
	idx, ok := f.byCode[code]
	if !ok {
		return Node{}, false
	}
	return f.nodes[idx], true
}

// Walk visits nodes depth-first, parents before children.
func (f *Forest) Walk(fn func(idx int, n Node)) {
	var visit func(idx int)
	visit = func(idx int) {
		fn(idx, f.nodes[idx])
		for _, child := range f.nodes[idx].Children {
			visit(child)
		}
	}
	for _, root := range f.roots {
		visit(root)
	}
}

func (f *Forest) ItemCount() int {
	count := 0
	for _, n := range f.nodes {
		count += len(n.Items)
	}
	return count
}

func (f *Forest) SynthesizedCount() int {
	count := 0
	for _, n := range f.nodes {
		if n.Synthesized {
			count++
		}
	}
	return count
}
