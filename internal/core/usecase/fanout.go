package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
)

// RetrievalFanOut issues all per-sub-query document-store lookups (and,
// when the plan includes it, the web lookup) concurrently and joins on all
// of them. A lookup that errors or times out contributes an empty
// RankedList; a turn never aborts because one source failed.
type RetrievalFanOut struct {
	embedder      ports.Embedder
	store         ports.DocumentStore
	web           ports.WebSearcher
	topK          int
	lookupTimeout time.Duration
	observer      PipelineObserver
	logger        *slog.Logger
}

func NewRetrievalFanOut(
	embedder ports.Embedder,
	store ports.DocumentStore,
	web ports.WebSearcher,
	topK int,
	lookupTimeout time.Duration,
	observer PipelineObserver,
	logger *slog.Logger,
) *RetrievalFanOut {
	if topK <= 0 {
		topK = 5
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalFanOut{
		embedder:      embedder,
		store:         store,
		web:           web,
		topK:          topK,
		lookupTimeout: lookupTimeout,
		observer:      observer,
		logger:        logger,
	}
}

// Retrieve runs one fan-out pass. includeWeb adds the web lookup for the
// original query text to the same concurrent batch. The returned map is
// keyed by stable source identifier ("sq:<index>" or "web").
func (f *RetrievalFanOut) Retrieve(
	ctx context.Context,
	subQueries []domain.SubQuery,
	region domain.Region,
	includeWeb bool,
) map[string]domain.RankedList {
	lists := make([]domain.RankedList, len(subQueries))
	var webList domain.RankedList

	group, groupCtx := errgroup.WithContext(ctx)
	for i, sub := range subQueries {
		group.Go(func() error {
			lists[i] = f.lookupDocuments(groupCtx, sub, region)
			return nil
		})
	}
	if includeWeb && len(subQueries) > 0 {
		group.Go(func() error {
			webList = f.lookupWeb(groupCtx, subQueries[0].ParentText, region)
			return nil
		})
	}
	// Lookups only ever return nil; the group is the join point.
	_ = group.Wait()

	out := make(map[string]domain.RankedList, len(lists)+1)
	for _, list := range lists {
		out[list.SourceID] = list
	}
	if includeWeb && len(subQueries) > 0 {
		out[domain.WebSourceID] = webList
	}
	return out
}

// RetrieveWeb runs the conditional second pass used by threshold mode.
func (f *RetrievalFanOut) RetrieveWeb(ctx context.Context, queryText string, region domain.Region) domain.RankedList {
	return f.lookupWeb(ctx, queryText, region)
}

func (f *RetrievalFanOut) lookupDocuments(ctx context.Context, sub domain.SubQuery, region domain.Region) domain.RankedList {
	sourceID := domain.SubQuerySourceID(sub.Index)
	lookupCtx, cancel := context.WithTimeout(ctx, f.lookupTimeout)
	defer cancel()

	vector, err := f.embedder.EmbedQuery(lookupCtx, sub.Text)
	if err != nil {
		f.recordFailure(sourceID, "embed", err)
		return domain.RankedList{SourceID: sourceID}
	}

	hits, err := f.store.Search(lookupCtx, vector, region, f.topK)
	if err != nil {
		f.recordFailure(sourceID, "document_store", err)
		return domain.RankedList{SourceID: sourceID}
	}
	return buildRankedList(sourceID, hits)
}

func (f *RetrievalFanOut) lookupWeb(ctx context.Context, queryText string, region domain.Region) domain.RankedList {
	if f.web == nil {
		return domain.RankedList{SourceID: domain.WebSourceID}
	}
	lookupCtx, cancel := context.WithTimeout(ctx, f.lookupTimeout)
	defer cancel()

	hits, err := f.web.Search(lookupCtx, queryText, region, f.topK)
	if err != nil {
		f.recordFailure(domain.WebSourceID, "web_search", err)
		return domain.RankedList{SourceID: domain.WebSourceID}
	}
	return buildRankedList(domain.WebSourceID, hits)
}

func (f *RetrievalFanOut) recordFailure(sourceID, kind string, err error) {
	f.observer.RecordSourceFailure(sourceID, failureKind(err, kind))
	f.logger.Warn("retrieval_source_failed",
		"source", sourceID,
		"kind", kind,
		"error", err,
	)
}

func failureKind(err error, fallback string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return fallback
}

// buildRankedList enforces the RankedList invariants: descending score
// order, no duplicate document within the list, 1-based ranks, and the
// source identifier stamped on every hit.
func buildRankedList(sourceID string, hits []domain.ScoredHit) domain.RankedList {
	ordered := make([]domain.ScoredHit, len(hits))
	copy(ordered, hits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	seen := make(map[string]struct{}, len(ordered))
	out := make([]domain.ScoredHit, 0, len(ordered))
	for _, hit := range ordered {
		if _, dup := seen[hit.Document.ID]; dup {
			continue
		}
		seen[hit.Document.ID] = struct{}{}
		hit.SourceID = sourceID
		hit.Rank = len(out) + 1
		out = append(out, hit)
	}
	return domain.RankedList{SourceID: sourceID, Hits: out}
}
