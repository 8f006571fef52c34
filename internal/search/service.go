package search

import (
	"context"

	"go.uber.org/zap"

	"launchnav/internal/flow"
)

// Service is the facade that tries Meilisearch first, then Postgres FTS,
// then the in-process index.
type Service struct {
	logger *zap.Logger
	meili  *Meili
	pgfts  *PgFTS
	local  *Local
}

// NewService creates a search service. meili and pgfts may be nil.
func NewService(logger *zap.Logger, meili *Meili, pgfts *PgFTS) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger.Named("search"), meili: meili, pgfts: pgfts, local: NewLocal()}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("meilisearch error, falling back", zap.Error(err))
	}

	if s.pgfts.Healthy() {
		results, total, err := s.pgfts.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
		}
		s.logger.Warn("pgfts error, falling back", zap.Error(err))
	}

	results, total, _ := s.local.Search(q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "local"}
}

// IndexDocument replaces the indexed steps of a saved document. Postgres
// is written synchronously; Meilisearch is fire-and-forget.
func (s *Service) IndexDocument(ctx context.Context, documentName string, doc flow.Document) {
	records := Records(documentName, doc)
	stale := s.local.Replace(documentName, records)

	if s.pgfts.Healthy() {
		if err := s.pgfts.Replace(ctx, documentName, records); err != nil {
			s.logger.Warn("pgfts index", zap.String("document", documentName), zap.Error(err))
		}
	}

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSteps(records); err != nil {
			s.logger.Warn("index steps", zap.String("document", documentName), zap.Error(err))
		}
		if err := s.meili.DeleteSteps(stale); err != nil {
			s.logger.Warn("delete stale steps", zap.String("document", documentName), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every step indexed in Postgres to Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || !s.pgfts.Healthy() {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexSteps(records); err != nil {
		s.logger.Warn("reindex steps", zap.Error(err))
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
