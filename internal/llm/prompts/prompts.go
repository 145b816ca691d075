package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/mockinterview/internal/model"
)

// FS holds the built-in prompt templates.
//
//go:embed templates/*.txt
var FS embed.FS

var (
	submittedCodeRegex      = regexp.MustCompile(`(?i)</?\s*submitted-code\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxCodeRunes = 10000

// PromptVariant represents an evaluation prompt variant.
type PromptVariant string

const (
	// PromptStrict grades like a demanding interviewer.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default evaluation variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient is meant for beginner practice sessions.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce      sync.Once
	loadErr       error
	evalTemplates map[PromptVariant]*template.Template
	submissionTpl *template.Template
	interviewTpl  *template.Template
	hintTpl       *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// EvalData holds template data for evaluation prompts.
type EvalData struct {
	Title            string
	Description      string
	Language         string
	TestCases        string
	TotalTests       int
	SolutionApproach string
	Code             string
}

// InterviewData holds template data for the interviewer's system prompt.
type InterviewData struct {
	Language  string
	Questions int
}

// HintData holds template data for a hint request.
type HintData struct {
	Title       string
	Description string
	Language    string
	Code        string
}

// Load parses the prompt templates under templates/ in fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		evalTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			t, err := parse(fsys, "eval_"+string(v))
			if err != nil {
				loadErr = err
				return
			}
			evalTemplates[v] = t
		}
		if submissionTpl, loadErr = parse(fsys, "submission"); loadErr != nil {
			return
		}
		if interviewTpl, loadErr = parse(fsys, "interviewer"); loadErr != nil {
			return
		}
		hintTpl, loadErr = parse(fsys, "hint")
	})
	return loadErr
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	path := "templates/" + name + ".txt"
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", path, err)
	}
	t, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
	}
	return t, nil
}

// NewEvalData collects the template data for evaluating code against ch.
func NewEvalData(ch model.CodingChallenge, languageName, code string) EvalData {
	cases := ch.TestCases
	if cases == nil {
		cases = []model.TestCase{}
	}
	tc, _ := json.Marshal(cases)
	return EvalData{
		Title:            ch.Title,
		Description:      ch.Description,
		Language:         languageName,
		TestCases:        string(tc),
		TotalTests:       len(ch.TestCases),
		SolutionApproach: ch.SolutionApproach,
		Code:             SanitizeCode(code),
	}
}

// BuildEvalPrompt renders the system and user messages for an evaluation.
func BuildEvalPrompt(variant PromptVariant, data EvalData) (system, user string, err error) {
	if evalTemplates == nil {
		return "", "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := evalTemplates[variant]
	if !ok {
		return "", "", errors.New("invalid prompt variant: " + string(variant))
	}
	if system, err = render(tmpl, data); err != nil {
		return "", "", err
	}
	if user, err = render(submissionTpl, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// BuildInterviewerPrompt renders the interviewer's system prompt.
func BuildInterviewerPrompt(data InterviewData) (string, error) {
	if interviewTpl == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	return render(interviewTpl, data)
}

// BuildHintRequest renders the message asking the interviewer for a hint.
func BuildHintRequest(data HintData) (string, error) {
	if hintTpl == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	data.Code = SanitizeCode(data.Code)
	return render(hintTpl, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeCode strips prompt delimiter tags from candidate code and bounds its length.
func SanitizeCode(code string) string {
	code = submittedCodeRegex.ReplaceAllString(code, "")
	code = systemInstructionsRegex.ReplaceAllString(code, "")
	code = strings.TrimSpace(code)

	if code == "" {
		return "[No code provided]"
	}

	if utf8.RuneCountInString(code) > maxCodeRunes {
		runes := []rune(code)
		code = string(runes[:maxCodeRunes]) + "\n\n[Code truncated due to length]"
	}

	return code
}
