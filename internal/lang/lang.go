// Package lang holds the table of languages a coding challenge can be solved in.
package lang

import (
	"errors"
	"fmt"
	"strings"
)

// Language identifies one of the supported challenge languages.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	CPP        Language = "cpp"
	C          Language = "c"
	CSharp     Language = "csharp"
	Go         Language = "go"
	Ruby       Language = "ruby"
	Rust       Language = "rust"
)

// Default is the language offered when the candidate has not chosen one.
const Default = Python

// ErrUnsupportedLanguage is returned for a language outside the registry.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// TemplateFunc renders a solution stub for a function name, parameter list and return type.
type TemplateFunc func(fn, params, ret string) string

// StubFunc wraps a function signature, kept as written, in an editable body.
type StubFunc func(signature string) string

// Profile describes how a language is executed and edited.
type Profile struct {
	ID        int    // Judge0 language ID
	Name      string // display name
	EditorID  string // syntax highlighting identifier
	Extension string
	Template  TemplateFunc
	Stub      StubFunc
}

// Option is a value/label pair for language pickers.
type Option struct {
	Value Language `json:"value"`
	Label string   `json:"label"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

const (
	cPrelude   = "#include <stdio.h>\n#include <stdlib.h>\n\n"
	goPrelude  = "package main\n\nimport \"fmt\"\n\n"
	cppPrelude = "#include <iostream>\n#include <vector>\n#include <string>\nusing namespace std;\n\n"
)

// header strips the block opener a signature may already carry.
func header(sig, opener string) string {
	sig = strings.TrimSpace(sig)
	return strings.TrimSpace(strings.TrimSuffix(sig, opener))
}

func bracedStub(prelude string) StubFunc {
	return func(sig string) string {
		return prelude + header(sig, "{") + " {\n    // Write your code here\n    \n}"
	}
}

// classStub puts a bare method signature inside a Solution class.
func classStub(prelude string) StubFunc {
	return func(sig string) string {
		sig = header(sig, "{")
		if strings.Contains(sig, "class ") {
			return prelude + sig + " {\n    // Write your code here\n    \n}"
		}
		return prelude + "public class Solution {\n    " + sig + " {\n        // Write your code here\n        \n    }\n}"
	}
}

func goStub(sig string) string {
	prelude := goPrelude
	if strings.HasPrefix(strings.TrimSpace(sig), "package ") {
		prelude = ""
	}
	return bracedStub(prelude)(sig)
}

var order = []Language{Python, JavaScript, TypeScript, Java, CPP, C, CSharp, Go, Ruby, Rust}

var profiles = map[Language]Profile{
	Python: {
		ID: 71, Name: "Python", EditorID: "python", Extension: "py",
		Stub: func(sig string) string {
			return header(sig, ":") + ":\n    # Write your code here\n    pass"
		},
		Template: func(fn, params, _ string) string {
			return fmt.Sprintf("def %s(%s):\n    # Write your code here\n    pass", fn, params)
		},
	},
	JavaScript: {
		ID: 63, Name: "JavaScript", EditorID: "javascript", Extension: "js",
		Stub: bracedStub(""),
		Template: func(fn, params, _ string) string {
			return fmt.Sprintf("function %s(%s) {\n    // Write your code here\n    \n}", fn, params)
		},
	},
	TypeScript: {
		ID: 74, Name: "TypeScript", EditorID: "typescript", Extension: "ts",
		Stub: bracedStub(""),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf("function %s(%s): %s {\n    // Write your code here\n    \n}", fn, params, orDefault(ret, "any"))
		},
	},
	Java: {
		ID: 62, Name: "Java", EditorID: "java", Extension: "java",
		Stub: classStub(""),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf("public class Solution {\n    public static %s %s(%s) {\n        // Write your code here\n        return 0;\n    }\n}",
				orDefault(ret, "int"), fn, params)
		},
	},
	CPP: {
		ID: 54, Name: "C++", EditorID: "cpp", Extension: "cpp",
		Stub: bracedStub(cppPrelude),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf(cppPrelude+"%s %s(%s) {\n    // Write your code here\n    return 0;\n}",
				orDefault(ret, "int"), fn, params)
		},
	},
	C: {
		ID: 50, Name: "C", EditorID: "c", Extension: "c",
		Stub: bracedStub(cPrelude),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf(cPrelude+"%s %s(%s) {\n    // Write your code here\n    return 0;\n}",
				orDefault(ret, "int"), fn, params)
		},
	},
	CSharp: {
		ID: 51, Name: "C#", EditorID: "csharp", Extension: "cs",
		Stub: classStub("using System;\n\n"),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf("using System;\n\npublic class Solution {\n    public static %s %s(%s) {\n        // Write your code here\n        return 0;\n    }\n}",
				orDefault(ret, "int"), fn, params)
		},
	},
	Go: {
		ID: 60, Name: "Go", EditorID: "go", Extension: "go",
		Stub: goStub,
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf(goPrelude+"func %s(%s) %s {\n    // Write your code here\n    return 0\n}",
				fn, params, orDefault(ret, "int"))
		},
	},
	Ruby: {
		ID: 72, Name: "Ruby", EditorID: "ruby", Extension: "rb",
		Stub: func(sig string) string {
			return strings.TrimSpace(sig) + "\n    # Write your code here\n    \nend"
		},
		Template: func(fn, params, _ string) string {
			return fmt.Sprintf("def %s(%s)\n    # Write your code here\n    \nend", fn, params)
		},
	},
	Rust: {
		ID: 73, Name: "Rust", EditorID: "rust", Extension: "rs",
		Stub: bracedStub(""),
		Template: func(fn, params, ret string) string {
			return fmt.Sprintf("fn %s(%s) -> %s {\n    // Write your code here\n    0\n}", fn, params, orDefault(ret, "i32"))
		},
	},
}

// ProfileOf returns the profile for a language.
func ProfileOf(l Language) (Profile, error) {
	p, ok := profiles[l]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, l)
	}
	return p, nil
}

// Valid reports whether l belongs to the registry.
func (l Language) Valid() bool {
	_, ok := profiles[l]
	return ok
}

// Parse converts user input into a Language. Matching is case-insensitive.
func Parse(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
	}
	return l, nil
}

// All returns every language in registry order.
func All() []Option {
	opts := make([]Option, 0, len(order))
	for _, l := range order {
		opts = append(opts, Option{Value: l, Label: profiles[l].Name})
	}
	return opts
}
