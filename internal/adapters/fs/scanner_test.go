package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/synapse/internal/adapters/fs"
	"go.trai.ch/synapse/internal/core/domain"
)

type scanned struct {
	spec     string
	kind     domain.ImportKind
	typeOnly bool
}

func scan(src string) []scanned {
	var out []scanned
	for _, imp := range fs.ScanImports([]byte(src)) {
		out = append(out, scanned{imp.Specifier, imp.Kind, imp.TypeOnly})
	}
	return out
}

func TestScanImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []scanned
	}{
		{
			name: "static forms",
			src: `import a from "./a";
import * as b from './b';
import { c, d as e } from "./c";
import f, { g } from "./f";
import "./side-effect";
`,
			want: []scanned{
				{"./a", domain.ImportStatic, false},
				{"./b", domain.ImportStatic, false},
				{"./c", domain.ImportStatic, false},
				{"./f", domain.ImportStatic, false},
				{"./side-effect", domain.ImportStatic, false},
			},
		},
		{
			name: "multi line clause",
			src:  "import {\n  a,\n  from,\n} from \"./multi\"\nconst x = 1\n",
			want: []scanned{{"./multi", domain.ImportStatic, false}},
		},
		{
			name: "type only",
			src: `import type { T } from "./types";
import type Def from "./def";
import type from "./named-type";
export type { U } from "./u";
`,
			want: []scanned{
				{"./types", domain.ImportStatic, true},
				{"./def", domain.ImportStatic, true},
				{"./named-type", domain.ImportStatic, false},
				{"./u", domain.ImportReExport, true},
			},
		},
		{
			name: "re-exports",
			src: `export * from "./all";
export * as ns from "./ns";
export { a, b as c } from "./named";
export { local };
export const value = 1;
`,
			want: []scanned{
				{"./all", domain.ImportReExport, false},
				{"./ns", domain.ImportReExport, false},
				{"./named", domain.ImportReExport, false},
			},
		},
		{
			name: "require and import equals",
			src: `const fs = require("fs");
import path = require("path");
obj.require("./not-a-require");
`,
			want: []scanned{
				{"fs", domain.ImportRequire, false},
				{"path", domain.ImportRequire, false},
			},
		},
		{
			name: "dynamic import",
			src:  "const m = await import(\"./lazy\");\nimport(name);\nconsole.log(import.meta.url);\n",
			want: []scanned{{"./lazy", domain.ImportDynamic, true}},
		},
		{
			name: "comments and strings are skipped",
			src: `// import a from "./commented";
/* import b from "./block"; */
const s = "import c from './in-string'";
const t = ` + "`import d from \"./in-template\" ${x}`" + `;
import real from "./real";
`,
			want: []scanned{{"./real", domain.ImportStatic, false}},
		},
		{
			name: "template substitutions are scanned",
			src:  "const t = `${require(\"./inside\")}`;\n",
			want: []scanned{{"./inside", domain.ImportRequire, false}},
		},
		{
			name: "regex literals are skipped",
			src:  "const re = /import a from \"x\"/g;\nconst n = a / b / c;\nimport z from \"./z\";\n",
			want: []scanned{{"./z", domain.ImportStatic, false}},
		},
		{
			name: "hashbang",
			src:  "#!/usr/bin/env node\nimport a from \"./a\";\n",
			want: []scanned{{"./a", domain.ImportStatic, false}},
		},
		{
			name: "jsx text apostrophe does not hide later imports",
			src:  "const el = <p>don't</p>;\nconst lazy = import(\"./later\");\n",
			want: []scanned{{"./later", domain.ImportDynamic, true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scan(tt.src))
		})
	}
}

func TestScanImports_Positions(t *testing.T) {
	imps := fs.ScanImports([]byte("const a = 1;\n  import { y } from './missing';\n"))
	if assert.Len(t, imps, 1) {
		assert.Equal(t, 2, imps[0].Line)
		assert.Equal(t, 21, imps[0].Column)
	}
}
