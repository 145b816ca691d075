// Package harness turns a candidate's function into a runnable program that
// calls it once with a test case's arguments and prints the result.
package harness

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pavelanni/mockinterview/internal/lang"
)

// Build returns the complete program for one test case.
// testInput is inserted verbatim as the positional argument list; it is
// trusted input and syntax errors in it surface as sandbox failures.
func Build(l lang.Language, userCode, functionName, testInput string) (string, error) {
	call := functionName + "(" + testInput + ")"

	switch l {
	case lang.Python:
		return userCode + "\n\n# Test execution\nprint(" + call + ")", nil
	case lang.JavaScript, lang.TypeScript:
		return userCode + "\n\n// Test execution\nconsole.log(" + call + ");", nil
	case lang.Ruby:
		return userCode + "\n\n# Test execution\nputs " + call, nil
	case lang.Go:
		return userCode + "\n\nfunc main() {\n    fmt.Println(" + call + ")\n}", nil
	case lang.Rust:
		return userCode + "\n\nfn main() {\n    println!(\"{}\", " + call + ");\n}", nil
	case lang.C:
		return userCode + "\n\nint main() {\n    printf(\"%d\\n\", " + call + ");\n    return 0;\n}", nil
	case lang.CPP:
		return userCode + "\n\nint main() {\n    std::cout << " + call + " << std::endl;\n    return 0;\n}", nil
	case lang.Java:
		return spliceIntoClass(userCode,
			"    public static void main(String[] args) {\n        System.out.println("+call+");\n    }"), nil
	case lang.CSharp:
		return spliceIntoClass(userCode,
			"    public static void Main(string[] args) {\n        Console.WriteLine("+call+");\n    }"), nil
	}
	return "", fmt.Errorf("build harness: %w: %s", lang.ErrUnsupportedLanguage, l)
}

// spliceIntoClass inserts method before the closing brace of the last
// top-level type in code. Code without such a brace gets the method and a
// closing brace appended, which the compiler will reject with a useful message.
func spliceIntoClass(code, method string) string {
	idx := lastTopLevelClose(code)
	if idx < 0 {
		return strings.TrimRightFunc(code, unicode.IsSpace) + "\n\n" + method + "\n}"
	}
	head := strings.TrimRightFunc(code[:idx], unicode.IsSpace)
	out := head + "\n\n" + method + "\n}"
	if tail := strings.TrimRightFunc(code[idx+1:], unicode.IsSpace); strings.TrimSpace(tail) != "" {
		out += tail
	}
	return out
}

// lastTopLevelClose returns the index of the last '}' that closes a
// depth-1 block, skipping braces inside comments, strings and char literals.
func lastTopLevelClose(code string) int {
	const (
		normal = iota
		lineComment
		blockComment
		str
		verbatimStr
		char
	)
	state := normal
	depth := 0
	last := -1

	for i := 0; i < len(code); i++ {
		c := code[i]
		switch state {
		case normal:
			switch {
			case c == '/' && i+1 < len(code) && code[i+1] == '/':
				state = lineComment
				i++
			case c == '/' && i+1 < len(code) && code[i+1] == '*':
				state = blockComment
				i++
			case c == '@' && i+1 < len(code) && code[i+1] == '"':
				state = verbatimStr
				i++
			case c == '"':
				state = str
			case c == '\'':
				state = char
			case c == '{':
				depth++
			case c == '}':
				if depth > 0 {
					depth--
					if depth == 0 {
						last = i
					}
				}
			}
		case lineComment:
			if c == '\n' {
				state = normal
			}
		case blockComment:
			if c == '*' && i+1 < len(code) && code[i+1] == '/' {
				state = normal
				i++
			}
		case str:
			if c == '\\' {
				i++
			} else if c == '"' || c == '\n' {
				state = normal
			}
		case verbatimStr:
			if c == '"' {
				if i+1 < len(code) && code[i+1] == '"' {
					i++
				} else {
					state = normal
				}
			}
		case char:
			if c == '\\' {
				i++
			} else if c == '\'' || c == '\n' {
				state = normal
			}
		}
	}
	return last
}
