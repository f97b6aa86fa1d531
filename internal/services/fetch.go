package services

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/resilience"
	"golang.org/x/sync/errgroup"
)

// fetchAll retrieves every record the session does not hold yet. Pages are
// fetched in parallel under the service's rate limit, each retried on
// transient errors, and ingested strictly in order: when a page fails, the
// pages before it are kept and everything after it is dropped so the next
// call resumes from a contiguous offset.
func (s *inspectionService) fetchAll(ctx context.Context, t *trackedSession) error {
	jobID, fileVersion := t.sess.JobID(), t.sess.FileVersion()

	expected := int(t.expected.Load())
	if expected < 0 {
		n, err := resilience.DoVal(ctx, s.policy(t.log, "count records"),
			func(ctx context.Context) (int, error) {
				return s.records.Count(ctx, jobID, fileVersion)
			})
		if err != nil {
			return eris.Wrap(err, "count records")
		}
		expected = n
		t.expected.Store(int64(n))
	}

	offset := t.sess.RecordCount()
	if offset >= expected {
		return nil
	}

	pageSize := s.opts.PageSize
	numPages := (expected - offset + pageSize - 1) / pageSize
	pages := make([][]models.PropertyRecord, numPages)
	fetched := make([]bool, numPages)
	policy := s.policy(t.log, "fetch records page")

	t.log.Info("Fetching records", map[string]interface{}{
		"offset":   offset,
		"expected": expected,
		"pages":    numPages,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := 0; i < numPages; i++ {
		pageOffset := offset + i*pageSize
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			recs, err := resilience.DoVal(gctx, policy, func(ctx context.Context) ([]models.PropertyRecord, error) {
				return s.records.FetchPage(ctx, jobID, fileVersion, pageOffset, pageSize)
			})
			if err != nil {
				return eris.Wrapf(err, "fetch page at offset %d", pageOffset)
			}
			pages[i] = recs
			fetched[i] = true
			return nil
		})
	}
	waitErr := g.Wait()

	for i := range pages {
		if !fetched[i] {
			break
		}
		if err := t.sess.Ingest(pages[i]...); err != nil {
			return err
		}
	}
	if waitErr != nil {
		return waitErr
	}

	if got := t.sess.RecordCount(); got != expected {
		t.log.Warn("Record count changed during retrieval", map[string]interface{}{
			"expected": expected,
			"fetched":  got,
		})
		t.expected.Store(int64(got))
	}
	return nil
}
