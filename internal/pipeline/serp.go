package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/pkg/serpapi"
)

// SerpCollector is the SerpCollection stage: one fetch per unique
// (keyword, geo, language), issued concurrently. The fetcher's token bucket
// paces the calls and its response cache prevents duplicate spend within a
// run.
type SerpCollector struct {
	serp          serpapi.Client
	maxConcurrent int
}

func NewSerpCollector(serp serpapi.Client, maxConcurrent int) *SerpCollector {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &SerpCollector{serp: serp, maxConcurrent: maxConcurrent}
}

func (s *SerpCollector) Stage() model.Stage {
	return model.StageSerpCollection
}

func (s *SerpCollector) Run(ctx context.Context, pc *Context) (Output, error) {
	log := zap.L().With(zap.String("project", pc.Project.ID))

	// Unique queries; duplicate normalized texts were already merged by
	// Expansion, so this is one entry per keyword.
	queries := make([]string, 0, len(pc.Keywords))
	seen := make(map[string]struct{}, len(pc.Keywords))
	for _, kw := range pc.Keywords {
		if kw.Invalid {
			continue
		}
		if _, dup := seen[kw.Normalized]; dup {
			continue
		}
		seen[kw.Normalized] = struct{}{}
		queries = append(queries, kw.Normalized)
	}

	snapshots := make(map[string]model.SerpSnapshot, len(queries))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, query := range queries {
		g.Go(func() error {
			metrics, err := s.serp.Search(gCtx, query, pc.Project.Geo, pc.Project.Language)
			if err != nil {
				return err
			}
			snap := snapshotFromMetrics(query, pc.Project.Geo, pc.Project.Language, metrics)
			mu.Lock()
			snapshots[query] = snap
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("serp collection: snapshots captured", zap.Int("queries", len(queries)))
	return Collected{Snapshots: snapshots}, nil
}

func snapshotFromMetrics(query, geo, language string, m *serpapi.Metrics) model.SerpSnapshot {
	results := make([]model.SerpResult, 0, len(m.Organic))
	for _, r := range m.Organic {
		results = append(results, model.SerpResult{
			Position: r.Position,
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
		})
	}
	return model.SerpSnapshot{
		Query:        query,
		Geo:          geo,
		Language:     language,
		Results:      results,
		Features:     m.Features,
		PAAQuestions: m.PAAQuestions,
		AdsCount:     m.AdsCount,
		AdsDensity:   m.AdsDensity,
		MapPack:      m.MapPack,
		Provider:     serpapi.ProviderName,
		FetchedAt:    time.Now().UTC(),
	}
}
