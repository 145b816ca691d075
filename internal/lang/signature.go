package lang

import (
	"regexp"
	"strings"
)

// FallbackName is used when no function name can be found in a signature.
const FallbackName = "solution"

var (
	defRe    = regexp.MustCompile(`def\s+(\w+)\s*\(`)
	rubyRe   = regexp.MustCompile(`def\s+(\w+[?!]?)\s*\(?`)
	jsRe     = regexp.MustCompile(`(?:function\s+)?(\w+)\s*\(`)
	cFamRe   = regexp.MustCompile(`(?:^|[\s*&>\]])(\w+)\s*\(`)
	goFuncRe = regexp.MustCompile(`func\s+(\w+)\s*\(`)
	rustFnRe = regexp.MustCompile(`fn\s+(\w+)\s*[<(]`)

	pyRetRe   = regexp.MustCompile(`\)\s*->\s*([^:]+?)\s*:?\s*$`)
	tsRetRe   = regexp.MustCompile(`\)\s*:\s*([^{]+?)\s*\{?\s*$`)
	rustRetRe = regexp.MustCompile(`\)\s*->\s*([^{]+?)\s*\{?\s*$`)
	goRetRe   = regexp.MustCompile(`\)\s*([^{]*?)\s*\{?\s*$`)
)

var cModifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "internal": true,
	"static": true, "final": true, "inline": true, "virtual": true,
	"override": true, "extern": true, "synchronized": true, "abstract": true,
}

// FunctionName is the result of parsing a function name out of a signature.
// Fallback is set when the signature did not match the language's grammar
// and Name is FallbackName; callers should treat such names as low confidence.
type FunctionName struct {
	Name     string
	Fallback bool
}

// Signature is the parsed shape of a function signature.
type Signature struct {
	FunctionName
	Params string
	Return string
}

func nameRegexp(l Language) *regexp.Regexp {
	switch l {
	case Python:
		return defRe
	case Ruby:
		return rubyRe
	case JavaScript, TypeScript:
		return jsRe
	case Java, CSharp, C, CPP:
		return cFamRe
	case Go:
		return goFuncRe
	case Rust:
		return rustFnRe
	}
	return nil
}

// ExtractFunctionName finds the callable's name in a signature.
// It never fails: unmatched input yields FallbackName with Fallback set.
func ExtractFunctionName(signature string, l Language) FunctionName {
	start, end := locateName(signature, l)
	if start < 0 {
		return FunctionName{Name: FallbackName, Fallback: true}
	}
	return FunctionName{Name: signature[start:end]}
}

// locateName returns the byte span of the function name, or -1, -1.
func locateName(signature string, l Language) (int, int) {
	re := nameRegexp(l)
	if re == nil {
		return -1, -1
	}
	m := re.FindStringSubmatchIndex(signature)
	if m == nil {
		return -1, -1
	}
	return m[2], m[3]
}

// ParseSignature extracts the name, parameter list and return type from a signature.
// Params and Return are empty when they cannot be determined.
func ParseSignature(signature string, l Language) Signature {
	start, end := locateName(signature, l)
	if start < 0 {
		return Signature{FunctionName: FunctionName{Name: FallbackName, Fallback: true}}
	}
	sig := Signature{FunctionName: FunctionName{Name: signature[start:end]}}

	open := strings.IndexByte(signature[end:], '(')
	if open < 0 {
		return sig
	}
	open += end
	closing := matchParen(signature, open)
	if closing < 0 {
		return sig
	}
	sig.Params = strings.TrimSpace(signature[open+1 : closing])
	tail := signature[closing:]

	switch l {
	case Python:
		sig.Return = submatch(pyRetRe, tail)
	case TypeScript:
		sig.Return = submatch(tsRetRe, tail)
	case Rust:
		sig.Return = submatch(rustRetRe, tail)
	case Go:
		sig.Return = submatch(goRetRe, tail)
	case Java, CSharp, C, CPP:
		var kept []string
		for _, f := range strings.Fields(signature[:start]) {
			if !cModifiers[f] {
				kept = append(kept, f)
			}
		}
		sig.Return = strings.Join(kept, " ")
	}
	return sig
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// matchParen returns the index of the parenthesis closing the one at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
