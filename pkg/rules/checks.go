package rules

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-dynform/pkg/rules/expr"
	"github.com/goliatone/go-dynform/pkg/schema"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(schema.PhonePattern)
)

const dateLayout = "2006-01-02"

// input is what a step sees: the raw value, its trimmed form, every value of
// the form and the validation instant.
type input struct {
	raw     string
	trimmed string
	values  map[string]string
	now     time.Time
}

// step returns a non-empty message when the value fails the rule.
type step func(in input) string

type fieldRules struct {
	spec        schema.FieldSpec
	label       string
	required    bool
	requiredMsg string
	steps       []step
	extra       []Check
}

func compileField(spec schema.FieldSpec, cfg config) *fieldRules {
	fr := &fieldRules{
		spec:        spec,
		label:       spec.DisplayLabel(),
		required:    spec.Required,
		requiredMsg: msgRequired(spec.DisplayLabel()),
		extra:       cfg.checks[spec.Name],
	}
	log := cfg.logger.With("field", spec.Name)
	kind := spec.Type.Normalize()

	switch kind {
	case schema.FieldTypeNumber:
		fr.steps = append(fr.steps, numberStep(spec.Min, spec.Max))
	case schema.FieldTypeDate:
		lower, okLower := parseBound(spec.MinDate)
		if !okLower {
			log.Warn("rules: ignoring unparsable minDate", "minDate", spec.MinDate)
		}
		upper, okUpper := parseBound(spec.UpperDateBound())
		if !okUpper {
			log.Warn("rules: ignoring unparsable maxDate", "maxDate", spec.UpperDateBound())
		}
		fr.steps = append(fr.steps, dateStep(lower, upper))
	default:
		if spec.MinLength != nil || spec.MaxLength != nil {
			fr.steps = append(fr.steps, lengthStep(spec.MinLength, spec.MaxLength))
		}
	}

	switch kind {
	case schema.FieldTypeEmail:
		fr.steps = append(fr.steps, matchStep(emailPattern, MsgInvalidEmail))
	case schema.FieldTypePhone:
		fr.steps = append(fr.steps, matchStep(phonePattern, MsgInvalidPhone))
	case schema.FieldTypeURL:
		fr.steps = append(fr.steps, urlStep)
	case schema.FieldTypeSelect:
		if len(spec.Options) > 0 {
			fr.steps = append(fr.steps, oneOfStep(spec.Options))
		}
	}

	if spec.Pattern != "" && kind.StringLike() {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			log.Warn("rules: ignoring invalid pattern", "pattern", spec.Pattern, "err", err)
		} else {
			msg := spec.PatternMessage
			if msg == "" {
				msg = MsgInvalidFormat
			}
			fr.steps = append(fr.steps, matchStep(re, msg))
		}
	}

	if src := strings.TrimSpace(spec.CustomValidation); src != "" {
		prog, err := expr.Compile(src)
		if err != nil {
			log.Warn("rules: skipping custom validation", "err", err)
		} else {
			msg := spec.CustomMessage
			if msg == "" {
				msg = msgCustom(fr.label)
			}
			fr.steps = append(fr.steps, customStep(prog, msg, log))
		}
	}
	return fr
}

// run applies the field's rules to in. Empty values short-circuit: they fail
// only when the field is required.
func (fr *fieldRules) run(ctx context.Context, in input) (string, error) {
	if in.trimmed == "" {
		if fr.required {
			return fr.requiredMsg, nil
		}
		return "", nil
	}
	for _, s := range fr.steps {
		if msg := s(in); msg != "" {
			return msg, nil
		}
	}
	for _, check := range fr.extra {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msg, err := check(ctx, in.raw, in.values)
		if err != nil {
			return "", err
		}
		if msg != "" {
			return msg, nil
		}
	}
	return "", nil
}

func lengthStep(minLen, maxLen *int) step {
	return func(in input) string {
		n := utf8.RuneCountInString(in.raw)
		if minLen != nil && n < *minLen {
			return msgMinLength(*minLen)
		}
		if maxLen != nil && n > *maxLen {
			return msgMaxLength(*maxLen)
		}
		return ""
	}
}

func numberStep(minV, maxV *float64) step {
	return func(in input) string {
		v, err := strconv.ParseFloat(in.trimmed, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return MsgNotANumber
		}
		if minV != nil && v < *minV {
			return msgMinValue(*minV)
		}
		if maxV != nil && v > *maxV {
			return msgMaxValue(*maxV)
		}
		return ""
	}
}

// dateBound is either a fixed day or the current day resolved per validation.
type dateBound struct {
	set   bool
	today bool
	day   time.Time
}

func (b dateBound) resolve(now time.Time) time.Time {
	if b.today {
		return truncateDay(now)
	}
	return b.day
}

func parseBound(raw string) (dateBound, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dateBound{}, true
	}
	if strings.EqualFold(raw, schema.TodaySentinel) {
		return dateBound{set: true, today: true}, true
	}
	day, ok := parseDate(raw)
	if !ok {
		return dateBound{}, false
	}
	return dateBound{set: true, day: day}, true
}

func parseDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return truncateDay(t), true
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateStep(lower, upper dateBound) step {
	return func(in input) string {
		day, ok := parseDate(in.trimmed)
		if !ok {
			return MsgInvalidDate
		}
		if lower.set {
			bound := lower.resolve(in.now)
			if day.Before(bound) {
				return msgDateAfter(bound.Format(dateLayout))
			}
		}
		if upper.set {
			bound := upper.resolve(in.now)
			if day.After(bound) {
				return msgDateBefore(bound.Format(dateLayout))
			}
		}
		return ""
	}
}

func matchStep(re *regexp.Regexp, msg string) step {
	return func(in input) string {
		if !re.MatchString(in.trimmed) {
			return msg
		}
		return ""
	}
}

func urlStep(in input) string {
	u, err := url.ParseRequestURI(in.trimmed)
	if err != nil || u.Host == "" {
		return MsgInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return ""
	default:
		return MsgInvalidURL
	}
}

func oneOfStep(options []string) step {
	allowed := slices.Clone(options)
	return func(in input) string {
		if !slices.Contains(allowed, in.raw) {
			return MsgInvalidOption
		}
		return ""
	}
}

func equalsField(other, msg string) step {
	return func(in input) string {
		if in.raw != in.values[other] {
			return msg
		}
		return ""
	}
}

func customStep(prog *expr.Program, msg string, log *slog.Logger) step {
	return func(in input) string {
		ok, err := prog.Eval(expr.Env{Value: in.raw, Values: in.values})
		if err != nil {
			// Runtime failures are treated like compile failures: the check is skipped.
			log.Warn("rules: custom validation failed to evaluate", "err", err)
			return ""
		}
		if !ok {
			return msg
		}
		return ""
	}
}
