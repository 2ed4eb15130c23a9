// Package pipeline drives discover → fetch → parse → resolve →
// normalize → upsert over a bounded worker pool, with per-item
// failure isolation and checkpoint-based skipping of unchanged
// sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"forkmap-backend/services/crawler/fetch"
	"forkmap-backend/services/crawler/normalize"
	"forkmap-backend/services/crawler/parse"
	"forkmap-backend/services/crawler/resolve"
	"forkmap-backend/services/crawler/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forkmap.services.crawler.pipeline")

type Fetcher interface {
	Discover(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, url string) (fetch.RawDocument, error)
}

type Resolver interface {
	Resolve(ctx context.Context, rawText string) (resolve.Location, error)
}

type Deps struct {
	Fetcher  Fetcher
	Resolver Resolver
	Store    *store.Store
	Vocab    *normalize.Vocabulary
}

type Options struct {
	// Full forces reprocessing of every discovered url, ignoring
	// checkpoints.
	Full bool
	// Concurrency bounds the worker pool; defaults to 4.
	Concurrency int
}

type Stage string

const (
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageResolve Stage = "resolve"
	StageStore   Stage = "store"
)

type ItemFailure struct {
	URL   string
	Stage Stage
	Err   error
}

func (f ItemFailure) String() string {
	return fmt.Sprintf("%s: %s: %s", f.URL, f.Stage, f.Err)
}

type Summary struct {
	Created     int
	Updated     int
	Unchanged   int
	Skipped     int
	Failed      int
	Failures    []ItemFailure
	UnknownTags []string
}

type itemOutcome struct {
	result  store.UpsertResult
	skipped bool
	failure *ItemFailure
	unknown []string
}

// Run executes one crawl. Per-item failures are recorded in the
// summary and never abort the run; only discovery failure, a store
// that becomes unavailable, or cancellation does. Cancellation is
// cooperative: in-flight items finish, queued ones are dropped.
func Run(ctx context.Context, deps Deps, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	urls, err := deps.Fetcher.Discover(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, fmt.Errorf("discover review urls: %w", err)
	}
	span.SetAttributes(attribute.Int("urls", len(urls)))
	slog.InfoContext(ctx, "starting crawl", "urls", len(urls), "full", opts.Full)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	// a dead database fails every remaining item the same way; give
	// up on the whole run instead
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		semaphore = make(chan struct{}, concurrency)
		wg        sync.WaitGroup
		mu        sync.Mutex
		summary   Summary
		fatal     error
	)

	for _, url := range urls {
		if runCtx.Err() != nil {
			break
		}
		semaphore <- struct{}{}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := processItem(runCtx, deps, opts, url)

			mu.Lock()
			defer mu.Unlock()
			summary.UnknownTags = append(summary.UnknownTags, outcome.unknown...)
			switch {
			case outcome.failure != nil:
				summary.Failed++
				summary.Failures = append(summary.Failures, *outcome.failure)
				if errors.Is(outcome.failure.Err, store.ErrUnavailable) && fatal == nil {
					fatal = outcome.failure.Err
					cancel()
				}
			case outcome.skipped:
				summary.Skipped++
			case outcome.result == store.Created:
				summary.Created++
			case outcome.result == store.Updated:
				summary.Updated++
			default:
				summary.Unchanged++
			}
		}(url)
	}
	wg.Wait()

	slices.Sort(summary.UnknownTags)
	summary.UnknownTags = slices.Compact(summary.UnknownTags)

	slog.InfoContext(ctx, "crawl finished",
		"created", summary.Created,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	if fatal != nil {
		return summary, fmt.Errorf("aborted: %w", fatal)
	}
	return summary, ctx.Err()
}

func processItem(ctx context.Context, deps Deps, opts Options, url string) itemOutcome {
	ctx, span := tracer.Start(ctx, "processItem")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	fail := func(stage Stage, err error) itemOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "item failed", "url", url, "stage", stage, "err", err)
		return itemOutcome{failure: &ItemFailure{URL: url, Stage: stage, Err: err}}
	}

	doc, err := deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return fail(StageFetch, err)
	}

	if !opts.Full {
		hash, ok, err := deps.Store.Checkpoint(ctx, url)
		if err != nil {
			slog.WarnContext(ctx, "reading checkpoint failed", "url", url, "err", err)
		} else if ok && hash == doc.ContentHash {
			slog.DebugContext(ctx, "source unchanged, skipping", "url", url)
			return itemOutcome{skipped: true}
		}
	}

	review, err := parse.Parse(ctx, doc)
	if err != nil {
		return fail(StageParse, err)
	}

	loc, err := deps.Resolver.Resolve(ctx, review.RawLocationText)
	if err != nil {
		return fail(StageResolve, err)
	}

	record, unknown := normalize.BuildRecord(review, loc, deps.Vocab)

	result, err := deps.Store.Upsert(ctx, record)
	if err != nil {
		return fail(StageStore, err)
	}

	if err := deps.Store.PutCheckpoint(ctx, url, doc.ContentHash); err != nil {
		slog.WarnContext(ctx, "writing checkpoint failed", "url", url, "err", err)
	}

	return itemOutcome{result: result, unknown: unknown}
}
