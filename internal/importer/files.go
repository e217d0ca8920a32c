package importer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// DefaultConcurrency bounds how many exports are parsed at once
const DefaultConcurrency = 4

// ParseFiles parses several exports concurrently. The result keeps the order
// of paths; the first failure cancels the remaining work.
func ParseFiles(ctx context.Context, paths []string, concurrency int) ([][]models.Event, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([][]models.Event, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, err := ParseFile(path)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
