package canon

import (
	"net/url"
	"regexp"

	"media_scrooper/models"
)

type regexRule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Regex rewrites every match of pattern to repl (regexp expansion syntax).
// repl must be a fixed value for the rule to stay idempotent.
func Regex(name, pattern, repl string) models.Rule {
	return &regexRule{name: name, re: regexp.MustCompile(pattern), repl: repl}
}

// CompileRegex is Regex for patterns coming from configuration.
func CompileRegex(name, pattern, repl string) (models.Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &regexRule{name: name, re: re, repl: repl}, nil
}

func (r *regexRule) Name() string { return r.name }

func (r *regexRule) Apply(raw string) (string, models.RuleOutcome) {
	if !r.re.MatchString(raw) {
		return raw, models.RuleNoop
	}
	out := r.re.ReplaceAllString(raw, r.repl)
	if out == raw {
		return raw, models.RuleNoop
	}
	return out, models.RuleRewrite
}

type rejectRule struct {
	name string
	re   *regexp.Regexp
}

// Reject drops any URL matching pattern: for sources where the thumbnail
// cannot be mapped to its full-size form.
func Reject(name, pattern string) models.Rule {
	return &rejectRule{name: name, re: regexp.MustCompile(pattern)}
}

func CompileReject(name, pattern string) (models.Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &rejectRule{name: name, re: re}, nil
}

func (r *rejectRule) Name() string { return r.name }

func (r *rejectRule) Apply(raw string) (string, models.RuleOutcome) {
	if r.re.MatchString(raw) {
		return raw, models.RuleReject
	}
	return raw, models.RuleNoop
}

type setQueryRule struct {
	name  string
	key   string
	value string
}

// SetQuery forces a query parameter to a fixed value when it is present.
func SetQuery(name, key, value string) models.Rule {
	return &setQueryRule{name: name, key: key, value: value}
}

func (r *setQueryRule) Name() string { return r.name }

func (r *setQueryRule) Apply(raw string) (string, models.RuleOutcome) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, models.RuleNoop
	}
	q := u.Query()
	if !q.Has(r.key) || q.Get(r.key) == r.value {
		return raw, models.RuleNoop
	}
	q.Set(r.key, r.value)
	u.RawQuery = q.Encode()
	return u.String(), models.RuleRewrite
}

// RuleFunc adapts a plain function. fn must be idempotent.
type RuleFunc struct {
	RuleName string
	Fn       func(string) (string, models.RuleOutcome)
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Apply(raw string) (string, models.RuleOutcome) {
	return f.Fn(raw)
}
