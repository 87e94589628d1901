package rules

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ValidateOne validates a single field. all supplies the other values for
// cross-field rules; value overrides all[name]. Unknown fields are valid.
func (rs *Ruleset) ValidateOne(ctx context.Context, name, value string, all map[string]string) (FieldResult, error) {
	fr, ok := rs.fields[name]
	if !ok {
		return FieldResult{Valid: true}, nil
	}
	values := make(map[string]string, len(all)+1)
	maps.Copy(values, all)
	values[name] = value

	msg, err := fr.run(ctx, input{
		raw:     value,
		trimmed: strings.TrimSpace(value),
		values:  values,
		now:     rs.clock(),
	})
	if err != nil {
		return FieldResult{}, fmt.Errorf("rules: validate %q: %w", name, err)
	}
	return FieldResult{Valid: msg == "", Message: msg}, nil
}

// ValidateAll validates every field without short-circuiting. Fields are
// checked concurrently; the result holds one message per invalid field.
func (rs *Ruleset) ValidateAll(ctx context.Context, values map[string]string) (Result, error) {
	snapshot := maps.Clone(values)
	if snapshot == nil {
		snapshot = map[string]string{}
	}
	now := rs.clock()
	messages := make([]string, len(rs.order))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range rs.order {
		fr := rs.fields[name]
		raw := snapshot[name]
		g.Go(func() error {
			msg, err := fr.run(gctx, input{
				raw:     raw,
				trimmed: strings.TrimSpace(raw),
				values:  snapshot,
				now:     now,
			})
			if err != nil {
				return fmt.Errorf("rules: validate %q: %w", name, err)
			}
			messages[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Valid: true, Errors: map[string]string{}}
	for i, name := range rs.order {
		if messages[i] != "" {
			res.Valid = false
			res.Errors[name] = messages[i]
		}
	}
	return res, nil
}
