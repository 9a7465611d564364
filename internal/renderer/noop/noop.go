// Package noop provides a renderer that is always unavailable.
package noop

import (
	"context"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

// Renderer implements hours.Renderer but always returns hours.ErrRendererDisabled,
// so every poll cycle backs off and every command replies with the failure text.
type Renderer struct{}

// New creates a new Noop renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render returns an error since rendering is disabled.
func (Renderer) Render(_ context.Context, _ hours.RenderRequest) (string, error) {
	return "", hours.ErrRendererDisabled
}
