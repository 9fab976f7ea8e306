// Package newick parses and serializes rooted phylogenetic trees in Newick
// format.
package newick

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PhyloKorp/ipkdb/phylotree"
)

var ErrParse = errors.New("malformed newick")

// Parse reads a Newick string into a tree. The input must be terminated by a
// semicolon; whitespace around tokens is ignored. The returned tree is
// indexed.
func Parse(s string) (*phylotree.Tree, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}
	if !strings.HasSuffix(s, ";") {
		return nil, fmt.Errorf("%w: missing terminating semicolon", ErrParse)
	}

	p := &parser{input: s[:len(s)-1]}
	tree := phylotree.NewTree("")
	if err := p.parseNode(tree, tree.Root()); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		trailing := p.input[p.pos:]
		if len(trailing) > 30 {
			trailing = trailing[:27] + "..."
		}
		return nil, fmt.Errorf("%w: unparsed text after tree: %q", ErrParse, trailing)
	}
	tree.Index()
	return tree, nil
}

// ParseFile reads a Newick tree from a file.
func ParseFile(filename string) (*phylotree.Tree, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseNode fills in the node's children, label and branch length.
func (p *parser) parseNode(tree *phylotree.Tree, id phylotree.NodeID) error {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		for {
			child := tree.AddNode(id, "", 0)
			if err := p.parseNode(tree, child); err != nil {
				return err
			}
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return fmt.Errorf("%w: expected ',' or ')' at offset %d", ErrParse, p.pos)
			}
			break
		}
	}

	node := tree.Node(id)
	node.Label = p.readLabel()

	p.skipSpace()
	if p.peek() == ':' {
		p.pos++
		length, err := p.readLength()
		if err != nil {
			return err
		}
		node.BranchLength = length
	}
	return nil
}

func (p *parser) readLabel() string {
	p.skipSpace()
	if p.peek() == '\'' {
		p.pos++
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != '\'' {
			p.pos++
		}
		label := p.input[start:p.pos]
		if p.pos < len(p.input) {
			p.pos++
		}
		return label
	}
	start := p.pos
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '(', ')', ',', ':', ';', ' ', '\t', '\n', '\r':
			return p.input[start:p.pos]
		}
		p.pos++
	}
	return p.input[start:]
}

func (p *parser) readLength() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected branch length at offset %d", ErrParse, start)
	}
	length, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad branch length %q", ErrParse, p.input[start:p.pos])
	}
	return length, nil
}

// String serializes a tree back to Newick.
func String(tree *phylotree.Tree) string {
	var sb strings.Builder
	writeNode(&sb, tree, tree.Root())
	sb.WriteByte(';')
	return sb.String()
}

// WriteFile serializes a tree to a Newick file.
func WriteFile(tree *phylotree.Tree, filename string) error {
	return os.WriteFile(filename, []byte(String(tree)+"\n"), 0644)
}

func writeNode(sb *strings.Builder, tree *phylotree.Tree, id phylotree.NodeID) {
	node := tree.Node(id)
	if !node.IsLeaf() {
		sb.WriteByte('(')
		for i, child := range node.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeNode(sb, tree, child)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(node.Label)
	if node.Parent != phylotree.NoNode {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(node.BranchLength, 'g', -1, 64))
	}
}
