package sources

import (
	"context"

	"github.com/kerbaras/mangago/pkg/data"
)

// Source resolves human queries into structured title metadata. The
// download pipeline consumes only the validated Title/Chapter records a
// Source returns; it never inspects source markup itself.
type Source interface {
	Search(ctx context.Context, query string) ([]data.Title, error)
	GetTitle(ctx context.Context, id string) (*data.Title, error)
	GetChapters(ctx context.Context, title *data.Title) ([]*data.Chapter, error)
	GetPages(ctx context.Context, title *data.Title, chapter *data.Chapter) ([]string, error)
}
