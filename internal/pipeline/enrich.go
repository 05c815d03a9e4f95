package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/pkg/trends"
)

// MetricsEnricher is the MetricsEnrichment stage: it attaches volume, CPC,
// and trend direction to each keyword and copies SERP feature signals from
// the collected snapshots. Keywords with no available metrics keep null
// values; missing data is a first-class state, not an error.
type MetricsEnricher struct {
	trends        trends.Client
	maxConcurrent int
}

func NewMetricsEnricher(t trends.Client, maxConcurrent int) *MetricsEnricher {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &MetricsEnricher{trends: t, maxConcurrent: maxConcurrent}
}

func (m *MetricsEnricher) Stage() model.Stage {
	return model.StageMetricsEnrichment
}

func (m *MetricsEnricher) Run(ctx context.Context, pc *Context) (Output, error) {
	log := zap.L().With(zap.String("project", pc.Project.ID))

	keywords := make([]model.Keyword, len(pc.Keywords))
	copy(keywords, pc.Keywords)

	var mu sync.Mutex
	var missing int

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)

	for i := range keywords {
		if keywords[i].Invalid {
			continue
		}
		g.Go(func() error {
			metrics, err := m.trends.Metrics(gCtx, keywords[i].Normalized, pc.Project.Geo)
			if err != nil {
				// Metrics are best effort; the keyword is retained
				// with nulls unless the run itself is cancelled.
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				mu.Lock()
				missing++
				mu.Unlock()
				keywords[i].TrendDirection = model.TrendUnknown
				return nil
			}
			keywords[i].Volume = metrics.Volume
			keywords[i].CPC = metrics.CPC
			keywords[i].TrendDirection = metrics.Direction
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// SERP signals captured during collection ride along on the keyword.
	for i := range keywords {
		if snap, ok := pc.Snapshot(keywords[i].Normalized); ok {
			keywords[i].SerpFeatures = snap.Features
			keywords[i].AdsDensity = snap.AdsDensity
		}
	}

	log.Info("metrics enrichment: done",
		zap.Int("keywords", len(keywords)),
		zap.Int("without_metrics", missing),
	)
	return Enriched{Keywords: keywords}, nil
}
