package render

import (
	"context"

	"github.com/goliatone/go-dynform/pkg/session"
)

// Renderer turns a session snapshot into a byte representation (HTML, plain
// text, etc.).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, state session.State, options RenderOptions) ([]byte, error)
}
