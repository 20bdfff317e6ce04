package simulator

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Rule is one risk rule. When and Reason are CEL expressions over the
// variables `action` (string) and `payload` (map). The first rule whose When
// holds decides the score.
type Rule struct {
	Name   string `yaml:"name" toml:"name"`
	When   string `yaml:"when" toml:"when"`
	Score  int    `yaml:"score" toml:"score"`
	Reason string `yaml:"reason" toml:"reason"`
}

// Routine is the verdict when no rule matches.
const Routine = "Routine operation."

// DefaultRules mirrors the finance-ops policy the demo backend ships with.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "high_value_payment",
			When:  `action == "PAY_INVOICE" && "amount" in payload && double(payload.amount) > 5000.0`,
			Score: 95,
			Reason: `"High value payment ($" + string(int(double(payload.amount))) + ") to " + ` +
				`("vendor" in payload ? string(payload.vendor) : "Unknown") + " exceeds auto-approve limit."`,
		},
		{
			Name:   "moderate_payment",
			When:   `action == "PAY_INVOICE" && "amount" in payload && double(payload.amount) > 500.0`,
			Score:  40,
			Reason: `"Moderate value, within standard operating limits."`,
		},
		{
			Name:   "destructive_action",
			When:   `action in ["DELETE_USER", "WIPE_DATABASE"]`,
			Score:  100,
			Reason: `"Destructive action detected. Human verification mandatory."`,
		},
	}
}

// Verdict is the outcome of evaluating the rules.
type Verdict struct {
	Rule     string // empty when no rule matched
	Score    int
	Analysis string
}

type compiledRule struct {
	Rule
	when   cel.Program
	reason cel.Program
}

// Engine evaluates a compiled rule set. It is safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine type-checks and compiles rules.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	e := &Engine{}
	for _, r := range rules {
		if r.Score < 0 || r.Score > 100 {
			return nil, fmt.Errorf("rule %s: score %d out of range", r.Name, r.Score)
		}
		when, err := compile(env, r.When, cel.BoolType)
		if err != nil {
			return nil, fmt.Errorf("rule %s: when: %w", r.Name, err)
		}
		reason, err := compile(env, r.Reason, cel.StringType)
		if err != nil {
			return nil, fmt.Errorf("rule %s: reason: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, when: when, reason: reason})
	}
	return e, nil
}

func compile(env *cel.Env, expr string, want *cel.Type) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(want) {
		return nil, fmt.Errorf("expression yields %s, want %s", ast.OutputType(), want)
	}
	return env.Program(ast)
}

// Evaluate runs the rules in order against an action.
func (e *Engine) Evaluate(action string, payload map[string]any) (Verdict, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	vars := map[string]any{"action": action, "payload": payload}

	for _, r := range e.rules {
		out, _, err := r.when.Eval(vars)
		if err != nil {
			return Verdict{}, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		if matched, _ := out.Value().(bool); !matched {
			continue
		}
		reason, _, err := r.reason.Eval(vars)
		if err != nil {
			return Verdict{}, fmt.Errorf("rule %s: reason: %w", r.Name, err)
		}
		text, _ := reason.Value().(string)
		return Verdict{Rule: r.Name, Score: r.Score, Analysis: text}, nil
	}
	return Verdict{Analysis: Routine}, nil
}
