package transform

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

// parserPool hands out tree-sitter parsers bound to one grammar. A parser is
// used by one goroutine at a time and returned after the tree is converted.
type parserPool struct {
	pool sync.Pool
}

func newParserPool(lang *sitter.Language) *parserPool {
	return &parserPool{pool: sync.Pool{New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		return p
	}}}
}

var (
	tsParsers  = newParserPool(typescript.GetLanguage())
	tsxParsers = newParserPool(tsx.GetLanguage())
)

// parsed is the syntax tree of one unit plus its line index.
type parsed struct {
	root  *Node
	lines *lineIndex
}

// parse builds the CST for src. .ts and .js use the TypeScript grammar so
// `<T>x` assertions parse; .tsx and .jsx use the TSX grammar.
func parse(ctx context.Context, src []byte, lang domain.Language) (*parsed, domain.Diagnostics, error) {
	pool := tsParsers
	if lang.HasJSX() {
		pool = tsxParsers
	}
	p, ok := pool.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, nil, zerr.New("parser pool returned an unexpected value")
	}
	defer pool.pool.Put(p)

	text, respelled := src, false
	var root *Node
	for range maxRespelled + 1 {
		tree, err := p.ParseCtx(ctx, nil, text)
		if err != nil {
			return nil, nil, zerr.Wrap(err, domain.ErrParseFailed.Error())
		}
		root = convert(tree.RootNode(), nil, "")
		bad := firstErrorNode(root)
		if bad == nil || !bareTypeSpecifier(text, bad) {
			break
		}
		if !respelled {
			text, respelled = slices.Clone(src), true
		}
		copy(text[bad.Start:bad.End], typeStandIn)
	}
	lines := newLineIndex(src)
	if bad := firstErrorNode(root); bad != nil {
		return nil, domain.Diagnostics{syntaxError(bad, src, lines)}, nil
	}
	return &parsed{root: root, lines: lines}, nil, nil
}

// The grammar reads `type` in `export { type }` as a modifier with no name
// after it. Such a specifier is reparsed with an identifier of the same
// length in its place. Node text still comes from the original source.
const (
	typeStandIn  = "$ype"
	maxRespelled = 8
)

// bareTypeSpecifier reports whether n is a lone `type` keyword standing as
// a whole import or export specifier.
func bareTypeSpecifier(src []byte, n *Node) bool {
	if n.Missing || string(src[n.Start:n.End]) != "type" {
		return false
	}
	before := bytes.TrimRight(src[:n.Start], " \t\r\n")
	after := bytes.TrimLeft(src[n.End:], " \t\r\n")
	if len(before) == 0 || len(after) == 0 {
		return false
	}
	prev, next := before[len(before)-1], after[0]
	return (prev == '{' || prev == ',') && (next == '}' || next == ',')
}

func firstErrorNode(root *Node) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == "ERROR" || n.Missing {
			found = n
			return false
		}
		return true
	})
	return found
}

func syntaxError(found *Node, src []byte, lines *lineIndex) domain.Diagnostic {
	line, col := lines.pos(found.Start)
	var msg string
	if found.Missing {
		msg = fmt.Sprintf("expected %q", found.Kind)
	} else {
		msg = fmt.Sprintf("unexpected %s", describeToken(found, src))
	}
	return domain.Errorf(domain.CodeParse, "", line+1, col+1, "%s", msg)
}

func describeToken(n *Node, src []byte) string {
	text := n.Text(src)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "end of input"
	}
	if len(text) > 24 {
		text = text[:24] + "..."
	}
	return fmt.Sprintf("%q", text)
}
