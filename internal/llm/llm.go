package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/llm/prompts"
	"github.com/pavelanni/mockinterview/internal/model"
)

// ToolShowChallenge is the tool the interviewer calls to present a coding challenge.
const ToolShowChallenge = "show_coding_challenge"

// StartMessage opens the conversation when there is no history yet.
const StartMessage = "[Interview starting - candidate is ready]"

const fallbackFeedback = "Unable to evaluate your code. Please try again."

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	variant   prompts.PromptVariant
	questions int
}

// New creates a new LLM client. variant selects the evaluation prompt.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		variant:   prompts.PromptVariant(variant),
		questions: 7,
	}, nil
}

// Ping checks that the endpoint is reachable and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// EvaluateCode asks the LLM to grade code against a challenge. A reply that
// is not valid JSON degrades to a fixed "unable to evaluate" result instead
// of an error.
func (c *Client) EvaluateCode(ctx context.Context, ch model.CodingChallenge, code string) (model.EvaluationResult, error) {
	name := languageName(ch.Language)
	system, user, err := prompts.BuildEvalPrompt(c.variant, prompts.NewEvalData(ch, name, code))
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("build eval prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.EvaluationResult{}, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM evaluation response", "raw", raw)
	if raw == "" {
		return model.EvaluationResult{}, errors.New("LLM returned an empty evaluation")
	}

	var result model.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("unparseable evaluation response, using fallback", "error", err)
		return fallbackEvaluation(ch), nil
	}
	return result, nil
}

func fallbackEvaluation(ch model.CodingChallenge) model.EvaluationResult {
	return model.EvaluationResult{
		Correct:     false,
		Feedback:    fallbackFeedback,
		PassedTests: 0,
		TotalTests:  len(ch.TestCases),
		Hint:        "Make sure your code is valid " + languageName(ch.Language) + " syntax.",
	}
}

// Reply is one interviewer turn. Challenge is set when the interviewer
// presented a coding challenge; Content then holds its spoken intro.
type Reply struct {
	Content   string
	Challenge *model.CodingChallenge
}

// challengeArgs mirrors the show_coding_challenge tool parameters.
type challengeArgs struct {
	SpokenIntro       string           `json:"spoken_intro"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	FunctionSignature string           `json:"function_signature"`
	TestCases         []model.TestCase `json:"test_cases"`
	Hints             []string         `json:"hints"`
	SolutionApproach  string           `json:"solution_approach"`
}

// Chat produces the interviewer's next turn. Challenges are posed in l.
// With disableTools the interviewer can only answer in text.
func (c *Client) Chat(ctx context.Context, l lang.Language, history []model.Message, disableTools bool) (Reply, error) {
	system, err := prompts.BuildInterviewerPrompt(prompts.InterviewData{
		Language:  languageName(l),
		Questions: c.questions,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("build interviewer prompt: %w", err)
	}

	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleInterviewer {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if len(history) == 0 {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: StartMessage})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
		MaxTokens:   500,
	}
	if !disableTools {
		req.Tools = []openai.Tool{showChallengeTool(l)}
		req.ToolChoice = "auto"
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("LLM returned no choices")
	}

	msg := resp.Choices[0].Message
	slog.Debug("interviewer reply", "content", msg.Content, "tool_calls", len(msg.ToolCalls))

	for _, tc := range msg.ToolCalls {
		if tc.Type != openai.ToolTypeFunction || tc.Function.Name != ToolShowChallenge {
			continue
		}
		var args challengeArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return Reply{}, fmt.Errorf("parse %s arguments: %w", ToolShowChallenge, err)
		}
		if args.Hints == nil {
			args.Hints = []string{}
		}
		return Reply{
			Content: args.SpokenIntro,
			Challenge: &model.CodingChallenge{
				Title:             args.Title,
				Description:       args.Description,
				FunctionSignature: args.FunctionSignature,
				Language:          l,
				TestCases:         args.TestCases,
				Hints:             args.Hints,
				SolutionApproach:  args.SolutionApproach,
			},
		}, nil
	}

	return Reply{Content: msg.Content}, nil
}

// Hint asks the interviewer for an indirect hint on code. It returns the
// request message appended to the transcript and the interviewer's answer.
func (c *Client) Hint(ctx context.Context, history []model.Message, ch model.CodingChallenge, code string) (request, answer string, err error) {
	request, err = prompts.BuildHintRequest(prompts.HintData{
		Title:       ch.Title,
		Description: ch.Description,
		Language:    languageName(ch.Language),
		Code:        code,
	})
	if err != nil {
		return "", "", fmt.Errorf("build hint request: %w", err)
	}

	withRequest := append(append([]model.Message(nil), history...), model.Message{Role: model.RoleCandidate, Content: request})
	reply, err := c.Chat(ctx, ch.Language, withRequest, true)
	if err != nil {
		return "", "", err
	}
	return request, reply.Content, nil
}

func showChallengeTool(l lang.Language) openai.Tool {
	name := languageName(l)
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        ToolShowChallenge,
			Description: "Display a coding challenge for the candidate to solve. Use this for 1-2 questions during the interview.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"spoken_intro": {Type: jsonschema.String, Description: "What James says to introduce the challenge (1-2 sentences)"},
					"title":        {Type: jsonschema.String, Description: "Title of the coding problem"},
					"description":  {Type: jsonschema.String, Description: "Full problem description with constraints"},
					"function_signature": {
						Type:        jsonschema.String,
						Description: "The exact " + name + " function signature the user should implement",
					},
					"test_cases": {
						Type: jsonschema.Array,
						Items: &jsonschema.Definition{
							Type: jsonschema.Object,
							Properties: map[string]jsonschema.Definition{
								"input":  {Type: jsonschema.String, Description: "Arguments of one call in " + name + " syntax"},
								"output": {Type: jsonschema.String, Description: "Expected printed result"},
							},
							Required: []string{"input", "output"},
						},
						Description: "Example input/output test cases",
					},
					"hints": {
						Type:        jsonschema.Array,
						Items:       &jsonschema.Definition{Type: jsonschema.String},
						Description: "Hints to help if the candidate struggles",
					},
					"solution_approach": {Type: jsonschema.String, Description: "Brief description of the optimal approach for evaluation"},
				},
				Required: []string{"spoken_intro", "title", "description", "function_signature", "test_cases"},
			},
		},
	}
}

func languageName(l lang.Language) string {
	p, err := lang.ProfileOf(l)
	if err != nil {
		p, _ = lang.ProfileOf(lang.Default)
	}
	return p.Name
}
