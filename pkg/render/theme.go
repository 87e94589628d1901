package render

import (
	"maps"
	"slices"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// ThemeConfig flattens a theme selection into renderer configuration. Variant
// tokens override manifest tokens and every token is exposed as a CSS
// variable named --<token>.
func ThemeConfig(selection *theme.Selection) *theme.RendererConfig {
	if selection == nil || selection.Manifest == nil {
		return nil
	}
	manifest := selection.Manifest
	tokens := maps.Clone(manifest.Tokens)
	partials := maps.Clone(manifest.Templates)
	assets := maps.Clone(manifest.Assets.Files)
	prefix := manifest.Assets.Prefix

	if variant, ok := manifest.Variants[selection.Variant]; ok {
		tokens = merge(tokens, variant.Tokens)
		partials = merge(partials, variant.Templates)
		assets = merge(assets, variant.Assets.Files)
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
	}

	cfg := &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Tokens:   tokens,
		Partials: partials,
		CSSVars:  make(map[string]string, len(tokens)),
		AssetURL: func(key string) string {
			file, ok := assets[key]
			if !ok || file == "" {
				return ""
			}
			return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
		},
	}
	for key, value := range tokens {
		cfg.CSSVars["--"+key] = value
	}
	return cfg
}

// CSSVarsStyle renders CSS variables as a deterministic inline style.
func CSSVarsStyle(cfg *theme.RendererConfig) string {
	if cfg == nil || len(cfg.CSSVars) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(cfg.CSSVars))
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(cfg.CSSVars[key])
		b.WriteByte(';')
	}
	return b.String()
}

func merge(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(over))
	}
	maps.Copy(base, over)
	return base
}
