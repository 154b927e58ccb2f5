// Package pipeline turns forge change requests into classified results and
// drives a full scan run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/danielolaszy/prwatch/internal/cache"
	"github.com/danielolaszy/prwatch/internal/diff"
	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/pkg/models"
)

// Cache is the classification store used by Process.
type Cache interface {
	Get(key cache.Key) (models.Classification, bool)
	Put(key cache.Key, cl models.Classification) error
}

// Classifier produces a classification from a request and its reduced diff.
type Classifier interface {
	Classify(ctx context.Context, req models.ChangeRequest, reducedDiff string) (models.Classification, error)
}

// CacheWriteError reports a classification that was produced but could not
// be stored. Process still returns the analyzed request alongside it.
type CacheWriteError struct {
	Key cache.Key
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("failed to cache classification %s: %v", e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }

// IsCacheWriteError reports whether err only failed to persist a result.
func IsCacheWriteError(err error) bool {
	var cw *CacheWriteError
	return errors.As(err, &cw)
}

type outcome struct {
	cl     models.Classification
	putErr error
}

// Pipeline classifies each change request at most once and reuses the
// cached verdict afterwards.
type Pipeline struct {
	cache      Cache
	classifier Classifier
	reducer    diff.Reducer
	flight     singleflight.Group
}

// New creates a Pipeline.
func New(c Cache, classifier Classifier, reducer diff.Reducer) *Pipeline {
	return &Pipeline{cache: c, classifier: classifier, reducer: reducer}
}

// Process returns the analyzed form of req. The classification comes from
// the cache when present; the title, author, URL and state always come from
// req. Concurrent calls for the same key share one classifier call. When
// only the cache write fails, the result is returned together with a
// *CacheWriteError.
func (p *Pipeline) Process(ctx context.Context, repo string, req models.ChangeRequest, state models.Lifecycle) (models.AnalyzedChangeRequest, error) {
	key := cache.Key{Repository: repo, Number: req.Number}

	v, err, _ := p.flight.Do(key.String(), func() (any, error) {
		if cl, ok := p.cache.Get(key); ok {
			logging.Debug("classification cache hit", "repository", repo, "pr_number", req.Number)
			return outcome{cl: cl}, nil
		}

		reduced := p.reducer.Reduce(req.Diff)
		logging.Debug("classifying change request",
			"repository", repo,
			"pr_number", req.Number,
			"diff_bytes", len(req.Diff),
			"reduced_bytes", len(reduced))

		cl, err := p.classifier.Classify(ctx, req, reduced)
		if err != nil {
			return nil, err
		}

		out := outcome{cl: cl}
		if !cl.Unclassified() {
			if err := p.cache.Put(key, cl); err != nil {
				logging.Error("failed to cache classification", "key", key.String(), "error", err)
				out.putErr = &CacheWriteError{Key: key, Err: err}
			}
		}
		return out, nil
	})
	if err != nil {
		return models.AnalyzedChangeRequest{}, fmt.Errorf("failed to process %s#%d: %w", repo, req.Number, err)
	}

	out := v.(outcome)
	return models.AnalyzedChangeRequest{
		Number:         req.Number,
		Title:          req.Title,
		URL:            req.URL,
		Author:         req.Author,
		Repository:     repo,
		State:          state,
		Classification: out.cl,
	}, out.putErr
}
