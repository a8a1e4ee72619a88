package transform

import (
	"path"
	"strconv"
	"strings"
)

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "else": true, "enum": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true, "let": true, "static": true, "implements": true, "interface": true,
	"package": true, "private": true, "protected": true, "public": true, "await": true,
	"arguments": true, "eval": true, "undefined": true, "NaN": true, "Infinity": true,
	"of": true, "as": true, "async": true, "get": true, "set": true,
}

// nameGen hands out identifiers that collide with nothing in the file.
type nameGen struct {
	taken map[string]bool
}

func newNameGen(idents map[string]bool) *nameGen {
	taken := make(map[string]bool, len(idents))
	for k := range idents {
		taken[k] = true
	}
	return &nameGen{taken: taken}
}

func (g *nameGen) free(name string) bool {
	return !g.taken[name] && !reservedWords[name]
}

// unique returns base, or base_N for the first free N.
func (g *nameGen) unique(base string) string {
	if g.free(base) {
		g.taken[base] = true
		return base
	}
	return g.suffixed(base)
}

// suffixed returns base_N for the first free N starting at 1.
func (g *nameGen) suffixed(base string) string {
	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if g.free(name) {
			g.taken[name] = true
			return name
		}
	}
}

// moduleVar names the variable holding a required module, x_1 for "./x".
func (g *nameGen) moduleVar(specifier string) string {
	return g.suffixed(moduleBaseName(specifier))
}

func moduleBaseName(specifier string) string {
	base := path.Base(strings.TrimRight(specifier, "/"))
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".json"} {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	var b strings.Builder
	for i := 0; i < len(base); i++ {
		c := base[i]
		if isIdentByte(c) && c < 0x80 {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" || out == "." {
		return "module"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

const shortAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const shortAlphabetRest = shortAlphabet + "0123456789_$"

// shortName returns the i-th name of the sequence a, b, ..., Z, aa, ab, ...
func shortName(i int) string {
	first := shortAlphabet[i%len(shortAlphabet)]
	i /= len(shortAlphabet)
	out := []byte{first}
	for i > 0 {
		i--
		out = append(out, shortAlphabetRest[i%len(shortAlphabetRest)])
		i /= len(shortAlphabetRest)
	}
	return string(out)
}
