package gateway

import (
	"context"
	"strings"
)

// TemplateRenderer substitutes {var} placeholders in a template. It stands in
// for the translation service when none is configured; a real deployment
// swaps in a Renderer that localizes per user before substitution.
type TemplateRenderer struct{}

var _ Renderer = TemplateRenderer{}

// Render replaces each {key} in template with vars[key].
func (TemplateRenderer) Render(_ context.Context, _ string, template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// StaticProfileStore serves the same service context for every user. Used
// when the deployment has a single clinic and service; a profile-service
// backed implementation replaces it otherwise.
type StaticProfileStore struct {
	Context ServiceContext
}

var _ ProfileStore = StaticProfileStore{}

// ServiceContext returns the configured context.
func (s StaticProfileStore) ServiceContext(_ context.Context, _ string) (ServiceContext, error) {
	return s.Context, nil
}
