package narrator

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tatianab/storyloop/internal/story"
)

const (
	InterludeID     = "narrator/interlude"
	InterludeSource = "builtin/narrator"

	// HintKey is the global key stories set to ask for an interlude.
	HintKey = "interlude"
	// ChoiceKey receives the option the player took, if any.
	ChoiceKey = "interlude_choice"
)

type interludeReply struct {
	Text    string   `yaml:"text"`
	Choices []string `yaml:"choices"`
}

// Interlude is a built-in story that runs whenever global["interlude"] holds
// a hint. It asks gen for a short narration and optional choices, and
// clears the hint so it runs once per request.
func Interlude(gen Generator) story.Definition {
	return story.Definition{
		ID:     InterludeID,
		Source: InterludeSource,
		OnLoad: func(_ context.Context, d *story.RunData) error {
			d.Local["runs"] = 0
			return nil
		},
		SelectCondition: func(d *story.RunData) bool {
			hint, _ := d.Global.String(HintKey)
			return strings.TrimSpace(hint) != ""
		},
		Run: func(ctx context.Context, d *story.RunData) error {
			return tellInterlude(ctx, gen, d)
		},
	}
}

func tellInterlude(ctx context.Context, gen Generator, d *story.RunData) error {
	hint, _ := d.Global.String(HintKey)
	delete(d.Global, HintKey)
	delete(d.Global, ChoiceKey)
	runs, _ := d.Local.Int("runs")
	d.Local["runs"] = runs + 1

	var state string
	if len(d.Global) > 0 {
		data, err := yaml.Marshal(map[string]any(d.Global))
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		state = strings.TrimSpace(string(data))
	}
	prompt, err := render(interludeTmpl, struct {
		Hint  string
		Runs  int
		State string
	}{Hint: hint, Runs: runs, State: state})
	if err != nil {
		return err
	}

	raw, err := gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate interlude: %w", err)
	}
	var reply interludeReply
	if err := parseYAML(raw, &reply); err != nil {
		return err
	}
	d.Logger.Debug("interlude generated", "hint", hint, "choices", len(reply.Choices))

	if text := strings.TrimSpace(reply.Text); text != "" {
		if err := d.UI.Text(ctx, text); err != nil {
			return err
		}
	}
	if len(reply.Choices) == 0 {
		return nil
	}

	options := make([]story.Option, 0, len(reply.Choices))
	for _, c := range reply.Choices {
		options = append(options, story.Option{Text: c, Value: c})
	}
	choice, err := d.UI.UserSelect(ctx, options, &story.SelectConfig{Prompt: "What do you do?"})
	if err != nil {
		return err
	}
	d.Global[ChoiceKey] = choice
	d.Logger.Info("interlude choice", "choice", choice)
	return nil
}
