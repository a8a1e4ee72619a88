// Package transform compiles one source unit: it parses the file with
// tree-sitter, strips TypeScript syntax, expands JSX, rewrites the module
// format, optionally minifies and emits code plus a source map.
//
// The syntax tree is never rewritten. Every stage decides, per node, what to
// emit in its place while a single emitter walks the tree in source order, so
// each emitted token keeps the position it came from.
package transform

import (
	"context"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
)

// Stages selects which rewriting stages run. Parse and emit always run.
type Stages uint8

const (
	// StageStrip erases TypeScript syntax and lowers enums, namespaces and decorators.
	StageStrip Stages = 1 << iota
	// StageJSX expands JSX elements into factory calls.
	StageJSX
	// StageModules rewrites import and export statements into the module format.
	StageModules
	// StageMinify drops whitespace and comments and shortens local names.
	StageMinify

	// AllStages enables every stage; the configuration still decides whether
	// a stage has anything to do.
	AllStages = StageStrip | StageJSX | StageModules | StageMinify
)

var _ ports.Transformer = (*Pipeline)(nil)

// Pipeline implements ports.Transformer. It holds no per-unit state and is
// safe for concurrent use.
type Pipeline struct {
	stages Stages
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStages restricts the pipeline to the given stages.
func WithStages(s Stages) Option {
	return func(p *Pipeline) {
		p.stages = s
	}
}

// New creates a Pipeline running every stage.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{stages: AllStages}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transform compiles su under cfg. imports describes what each of the
// unit's specifiers resolved to and, when known, its export shape.
func (p *Pipeline) Transform(
	ctx context.Context,
	su *domain.SourceUnit,
	imports domain.ImportShapes,
	cfg domain.CompilerConfig,
) (*domain.CompiledUnit, domain.Diagnostics) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Diagnostics{domain.Errorf(domain.CodeTransform, "", 0, 0, "%v", err)}
	}
	tree, diags, err := parse(ctx, su.Content, su.Language)
	if err != nil {
		return nil, domain.Diagnostics{domain.Errorf(domain.CodeParse, "", 0, 0, "%v", err)}
	}
	if tree == nil {
		return nil, diags
	}
	u := newUnit(su, imports, cfg, tree)
	u.strip = p.stages&StageStrip != 0
	u.jsxOn = p.stages&StageJSX != 0 && su.Language.HasJSX() && cfg.JSX.Enabled
	u.modulesOn = p.stages&StageModules != 0
	u.minify = p.stages&StageMinify != 0 && cfg.Minify
	u.decorate = u.strip && cfg.TypeScript.ExperimentalDecorators
	if !u.modulesOn {
		u.format = domain.FormatESNext
	}
	u.e = newEmitter(tree.lines, cfg.SourceMaps, u.minify)

	out := u.run()
	u.diags.Sort()
	if out == nil || u.diags.HasErrors() {
		return nil, u.diags
	}
	return out, u.diags
}

func newUnit(su *domain.SourceUnit, imports domain.ImportShapes, cfg domain.CompilerConfig, tree *parsed) *unit {
	format := cfg.ModuleFormat
	if format == "" {
		format = domain.FormatESNext
	}
	return &unit{
		src:        su.Content,
		lang:       su.Language,
		cfg:        cfg,
		format:     format,
		imports:    imports,
		root:       tree.root,
		lines:      tree.lines,
		dropped:    make(map[*Node]bool),
		override:   make(map[*Node]string),
		qual:       make(map[*binding]string),
		nsOwner:    make(map[*binding]string),
		nsAfter:    make(map[*Node][]string),
		renamed:    make(map[*binding]string),
		pseudoRefs: make(map[*binding]int),
		inlined:    make(map[*Node]bool),
	}
}

// run analyses and emits the unit. A panic in a stage fails only this unit.
func (u *unit) run() (out *domain.CompiledUnit) {
	defer func() {
		if r := recover(); r != nil {
			u.diags = append(u.diags, domain.Errorf(domain.CodeTransform, "", 0, 0,
				"internal transform failure: %v", r))
			out = nil
		}
	}()
	u.prepare()
	if u.diags.HasErrors() {
		return nil
	}
	u.emitProgram()
	if u.diags.HasErrors() {
		return nil
	}
	out = &domain.CompiledUnit{Code: u.e.bytes(), Shape: u.mod.shape}
	if u.cfg.SourceMaps && u.e.sm != nil {
		out.Map = u.e.sm.Build()
	}
	return out
}

func (u *unit) prepare() {
	u.sc = analyzeScopes(u.root, u.src)
	u.names = newNameGen(u.sc.idents)
	if u.strip {
		u.prepareStrip()
		u.analyzeEnums()
		u.analyzeNamespaces()
	}
	if u.jsxOn {
		u.analyzeJSX()
	} else {
		u.jsx = &jsxState{classic: true}
	}
	u.analyzeDecorators()
	u.analyzeModule()
	u.planRenames()
}

func (u *unit) emitProgram() {
	kids := u.root.Children
	i := 0
	if len(kids) > 0 && kids[0].Kind == "hash_bang_line" {
		u.emit(kids[0])
		i = 1
	}
	start := i
	for i < len(kids) && isDirective(kids[i], u.src) {
		i++
	}
	directives, body := kids[start:i], kids[i:]

	switch {
	case !u.rewritesModules():
		u.emitPlain(directives, body)
	case u.format == domain.FormatAMD:
		u.emitAMD(directives, body)
	case u.format == domain.FormatUMD:
		u.emitUMD(directives, body)
	case u.format == domain.FormatSystemJS:
		u.emitSystem(directives, body)
	default:
		u.emitCommonJS(directives, body)
	}
	if !u.minify {
		u.e.newline()
	}
}

// isDirective reports whether st is a prologue directive such as "use strict".
func isDirective(st *Node, src []byte) bool {
	if st.Kind != "expression_statement" {
		return false
	}
	s := st.FirstNamed()
	return s != nil && s.Kind == "string" && s.End <= st.End && len(st.NamedChildren()) == 1 && src[s.Start] != '`'
}
