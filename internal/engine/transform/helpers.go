package transform

// helperSet records which runtime helpers a unit needs inlined.
type helperSet uint8

const (
	helperImportDefault helperSet = 1 << iota
	helperImportStar
	helperExportStar
	helperDecorate
	helperMetadata
	helperParam
)

func (h helperSet) has(x helperSet) bool {
	return h&x != 0
}

var helperOrder = []struct {
	flag helperSet
	text string
}{
	{helperDecorate, `var __decorate = (this && this.__decorate) || function (decorators, target, key, desc) {
    var c = arguments.length, r = c < 3 ? target : desc === null ? desc = Object.getOwnPropertyDescriptor(target, key) : desc, d;
    if (typeof Reflect === "object" && typeof Reflect.decorate === "function") r = Reflect.decorate(decorators, target, key, desc);
    else for (var i = decorators.length - 1; i >= 0; i--) if (d = decorators[i]) r = (c < 3 ? d(r) : c > 3 ? d(target, key, r) : d(target, key)) || r;
    return c > 3 && r && Object.defineProperty(target, key, r), r;
};`},
	{helperMetadata, `var __metadata = (this && this.__metadata) || function (k, v) {
    if (typeof Reflect === "object" && typeof Reflect.metadata === "function") return Reflect.metadata(k, v);
};`},
	{helperParam, `var __param = (this && this.__param) || function (paramIndex, decorator) {
    return function (target, key) { decorator(target, key, paramIndex); };
};`},
	{helperImportDefault, `var __importDefault = (this && this.__importDefault) || function (mod) {
    return (mod && mod.__esModule) ? mod : { "default": mod };
};`},
	{helperImportStar, `var __importStar = (this && this.__importStar) || function (mod) {
    if (mod && mod.__esModule) return mod;
    var result = {};
    if (mod != null) for (var k in mod) if (k !== "default" && Object.prototype.hasOwnProperty.call(mod, k)) result[k] = mod[k];
    result["default"] = mod;
    return result;
};`},
	{helperExportStar, `var __exportStar = (this && this.__exportStar) || function (m, exports) {
    Object.keys(m).forEach(function (p) {
        if (p !== "default" && !Object.prototype.hasOwnProperty.call(exports, p)) Object.defineProperty(exports, p, { enumerable: true, get: function () { return m[p]; } });
    });
};`},
}

func (u *unit) emitHelpers() {
	for _, h := range helperOrder {
		if u.helpers.has(h.flag) {
			u.stmt(-1, h.text)
		}
	}
}

// interopCall wraps a require expression in the interop helper d needs.
func interopCall(h helperSet, expr string) string {
	switch {
	case h.has(helperImportStar):
		return "__importStar(" + expr + ")"
	case h.has(helperImportDefault):
		return "__importDefault(" + expr + ")"
	default:
		return expr
	}
}
