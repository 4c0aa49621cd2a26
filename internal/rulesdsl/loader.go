package rulesdsl

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/parser"
	"github.com/codewithboateng/pyconform/internal/rules"
)

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	ID       string `yaml:"id"`
	Summary  string `yaml:"summary"`
	Severity string `yaml:"severity"` // LOW|MEDIUM|HIGH
	Message  string `yaml:"message"`

	Where struct {
		Path    string `yaml:"path"`    // regex on the slash path (optional)
		Pattern string `yaml:"pattern"` // regex on each physical line (optional)
		When    string `yaml:"when"`    // CEL condition over file facts (optional)
	} `yaml:"where"`
}

type compiled struct {
	rule      dslRule
	rePath    *regexp.Regexp
	rePattern *regexp.Regexp
	when      cel.Program
}

var factEnv = mustEnv()

func mustEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("lines", cel.IntType),
		cel.Variable("code_lines", cel.IntType),
		cel.Variable("comment_lines", cel.IntType),
		cel.Variable("imports", cel.ListType(cel.StringType)),
		cel.Variable("has_future_annotations", cel.BoolType),
	)
	if err != nil {
		panic(fmt.Sprintf("rulesdsl: cel env: %v", err))
	}
	return env
}

// LoadAndRegister reads a YAML rule pack and registers its rules.
func LoadAndRegister(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rules pack: %w", err)
	}
	rs, err := Parse(b)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for _, r := range rs {
		rules.Register(r)
	}
	return len(rs), nil
}

// Parse compiles a rule pack without registering it.
func Parse(b []byte) ([]rules.Rule, error) {
	var pack dslPack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out := make([]rules.Rule, 0, len(pack.Rules))
	for _, r := range pack.Rules {
		c, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.ID, err)
		}
		out = append(out, c.toRule())
	}
	return out, nil
}

func compile(r dslRule) (*compiled, error) {
	if r.ID == "" || r.Severity == "" || r.Message == "" {
		return nil, fmt.Errorf("missing required fields (id/severity/message)")
	}
	switch strings.ToUpper(r.Severity) {
	case "LOW", "MEDIUM", "HIGH":
		r.Severity = strings.ToUpper(r.Severity)
	default:
		return nil, fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.Where.Path == "" && r.Where.Pattern == "" && r.Where.When == "" {
		return nil, fmt.Errorf("where block needs path, pattern or when")
	}
	c := &compiled{rule: r}
	var err error
	if r.Where.Path != "" {
		if c.rePath, err = regexp.Compile(r.Where.Path); err != nil {
			return nil, fmt.Errorf("path regex: %w", err)
		}
	}
	if r.Where.Pattern != "" {
		if c.rePattern, err = regexp.Compile(r.Where.Pattern); err != nil {
			return nil, fmt.Errorf("pattern regex: %w", err)
		}
	}
	if r.Where.When != "" {
		ast, iss := factEnv.Compile(r.Where.When)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("when: %w", iss.Err())
		}
		if ast.OutputType().String() != cel.BoolType.String() {
			return nil, fmt.Errorf("when: expression yields %s, want bool", ast.OutputType())
		}
		if c.when, err = factEnv.Program(ast); err != nil {
			return nil, fmt.Errorf("when: %w", err)
		}
	}
	return c, nil
}

func (c *compiled) toRule() rules.Rule {
	return rules.Rule{
		ID:       c.rule.ID,
		Summary:  c.rule.Summary,
		Severity: c.rule.Severity,
		Eval:     c.eval,
	}
}

// eval reports one violation per line matching the pattern, or a single
// file-level violation at line 1 when the rule has no pattern.
func (c *compiled) eval(src *parser.SourceFile) []ir.Violation {
	if c.rePath != nil && !c.rePath.MatchString(slashPath(src.Path)) {
		return nil
	}
	if c.when != nil {
		ok, err := c.holds(src)
		if err != nil {
			slog.Warn("rule condition failed", "rule", c.rule.ID, "path", src.Path, "err", err)
			return nil
		}
		if !ok {
			return nil
		}
	}
	if c.rePattern == nil {
		return []ir.Violation{{
			RuleID:   c.rule.ID,
			Line:     1,
			Column:   1,
			Message:  c.rule.Message,
			Evidence: c.rule.Where.When,
		}}
	}
	var out []ir.Violation
	for i, line := range src.Lines {
		loc := c.rePattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		out = append(out, ir.Violation{
			RuleID:   c.rule.ID,
			Line:     i + 1,
			Column:   loc[0] + 1,
			Message:  c.rule.Message,
			Evidence: clip(strings.TrimSpace(line), 80),
		})
	}
	return out
}

func (c *compiled) holds(src *parser.SourceFile) (bool, error) {
	val, _, err := c.when.Eval(Facts(src))
	if err != nil {
		return false, err
	}
	b, ok := val.Value().(bool)
	return ok && b, nil
}

// Facts returns the variables visible to when expressions.
func Facts(src *parser.SourceFile) map[string]any {
	imports := make([]string, 0, len(src.Imports))
	future := false
	for _, im := range src.Imports {
		if !im.From {
			for _, n := range im.Names {
				imports = append(imports, n.Name)
			}
			continue
		}
		imports = append(imports, strings.Repeat(".", im.Level)+im.Module)
		if im.Module == "__future__" {
			for _, n := range im.Names {
				if n.Name == "annotations" {
					future = true
				}
			}
		}
	}
	return map[string]any{
		"path":                   slashPath(src.Path),
		"lines":                  int64(src.Stats.Lines),
		"code_lines":             int64(src.Stats.Code),
		"comment_lines":          int64(src.Stats.Comment),
		"imports":                imports,
		"has_future_annotations": future,
	}
}

func slashPath(p string) string { return strings.ReplaceAll(p, "\\", "/") }

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
