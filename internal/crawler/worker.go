package crawler

import (
	"bytes"
	"context"
	"errors"
	"runtime/debug"

	"github.com/nao1215/sitecrawler/internal/filter"
	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/model"
)

// outcome is the result of processing one frontier entry. At most one of
// accepted, filterReason, policyReason and errKind is set.
type outcome struct {
	// aborted means shutdown interrupted the entry before it produced a
	// result; it goes back to the frontier.
	aborted bool

	// accepted means the page passed the content filter and was persisted.
	accepted bool

	filterReason string
	policyReason string
	errKind      model.ErrorKind

	// host and resp describe the fetch, when one happened.
	host string
	resp *Response
}

// process runs the fetch-and-extract unit for one entry:
// robots check, rate limit wait, fetch, parse, content filter, persist and
// link discovery. ctx is the crawl context, checked before the fetch;
// fetchCtx bounds the fetch itself and outlives ctx by the grace period.
func (e *Engine) process(ctx, fetchCtx context.Context, entry model.FrontierEntry) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while processing page",
				"url", entry.URL,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			e.recordError(entry.URL, model.ErrorPanic, "panic while processing page")
			out = outcome{errKind: model.ErrorPanic}
		}
	}()

	u := entry.URL
	e.current.Store(&u)

	if res, ok := e.replay(ctx, entry); ok {
		return res
	}

	if e.cfg.RespectRobots && !e.robots.IsAllowed(ctx, entry.URL) {
		e.logger.Debug("disallowed by robots.txt", "url", entry.URL)
		return outcome{policyReason: string(model.ErrorRobotsDisallowed)}
	}

	host := frontier.Host(entry.URL)
	if err := e.limiter.WaitIfNeeded(ctx, host); err != nil {
		return outcome{aborted: true}
	}
	if ctx.Err() != nil {
		return outcome{aborted: true}
	}

	resp, err := e.fetcher.Fetch(fetchCtx, entry.URL)
	if err != nil {
		if fetchCtx.Err() != nil {
			return outcome{aborted: true}
		}
		kind := model.ErrorOther
		var fe *FetchError
		if errors.As(err, &fe) {
			kind = fe.Kind
		}
		e.logger.Debug("fetch failed", "url", entry.URL, "kind", kind, "error", err)
		e.recordError(entry.URL, kind, err.Error())
		return outcome{errKind: kind}
	}
	out = outcome{host: host, resp: resp}

	base := entry.URL
	if final, err := frontier.Normalize(resp.FinalURL); err == nil {
		base = final
	}
	parser, err := NewParser(base)
	if err != nil {
		out.errKind = model.ErrorInvalidURL
		return out
	}
	parsed, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		e.recordError(entry.URL, model.ErrorMalformedHTML, err.Error())
		out.errKind = model.ErrorMalformedHTML
		return out
	}

	verdict := e.cfg.Criteria.CheckContent(filter.Content{
		Title:    parsed.Metadata.Title,
		Text:     parsed.FullText,
		Language: parsed.Metadata.Language,
	})
	if verdict.Accepted {
		page := &model.PageRecord{
			SessionID:     e.session.ID,
			URL:           entry.URL,
			FinalURL:      resp.FinalURL,
			Depth:         entry.Depth,
			StatusCode:    resp.StatusCode,
			ContentType:   resp.ContentType,
			ContentLength: int64(len(resp.Body)),
			FetchDuration: resp.Duration,
			FetchedAt:     resp.FetchedAt,
			Links:         parsed.Links,
			Metadata:      parsed.Metadata,
			PassedFilters: true,
			ContentHash:   model.ComputeContentHash(resp.Body),
			Body:          resp.Body,
		}
		// A page that made it this far is written even during shutdown.
		if err := e.sink.Persist(context.WithoutCancel(fetchCtx), page); err != nil {
			e.logger.Error("failed to persist page", "url", entry.URL, "error", err)
			e.recordError(entry.URL, model.ErrorStorage, err.Error())
			out.errKind = model.ErrorStorage
		} else {
			out.accepted = true
		}
	} else {
		e.logger.Debug("page filtered", "url", entry.URL, "reason", verdict.Reason, "detail", verdict.Detail)
		out.filterReason = string(verdict.Reason)
	}

	e.enqueueLinks(ctx, parsed.Links, entry.Depth+1)
	return out
}

// replay short-cuts an entry of a resumed session whose page was persisted
// after the snapshot was taken.
func (e *Engine) replay(ctx context.Context, entry model.FrontierEntry) (outcome, bool) {
	if !e.resumed {
		return outcome{}, false
	}
	index, ok := e.store.(PageIndex)
	if !ok {
		return outcome{}, false
	}
	page, found, err := index.LookupPage(ctx, e.session.ID, entry.URL)
	if err != nil {
		e.logger.Warn("page index lookup failed", "url", entry.URL, "error", err)
		return outcome{}, false
	}
	if !found {
		return outcome{}, false
	}
	e.logger.Debug("page already persisted, skipping fetch", "url", entry.URL)
	e.enqueueLinks(ctx, page.Links, entry.Depth+1)
	return outcome{accepted: true}, true
}

// enqueueLinks offers links found at depth-1 to the frontier.
// Every distinct link counts towards urls_found, even when it is too deep
// or rejected by policy.
func (e *Engine) enqueueLinks(ctx context.Context, links []string, depth int) {
	if len(links) == 0 {
		return
	}
	e.waitForCheckpoint(ctx)

	for _, link := range links {
		eligible, reason := e.admit(ctx, link, depth)
		e.offer(link, depth, eligible, reason)
	}
}

// admit applies the depth limit, the URL filter and robots.txt to a link.
// Too-deep links are not a policy rejection and return an empty reason.
func (e *Engine) admit(ctx context.Context, link string, depth int) (bool, string) {
	if depth > e.cfg.MaxDepth {
		return false, ""
	}
	if v := e.cfg.Criteria.CheckURL(link); !v.Accepted {
		return false, string(v.Reason)
	}
	if e.cfg.RespectRobots && !e.robots.IsAllowed(ctx, link) {
		return false, string(model.ErrorRobotsDisallowed)
	}
	return true, ""
}

func (e *Engine) offer(link string, depth int, eligible bool, reason string) {
	e.accounting.RLock()
	defer e.accounting.RUnlock()

	if e.frontier.Discover(link) {
		e.stats.URLFound()
		if reason != "" {
			e.stats.PolicyRejected(reason)
		}
	}
	if eligible {
		e.frontier.Enqueue(link, depth)
	}
}

// settle records the outcome of an entry in the statistics and releases it
// from the frontier.
func (e *Engine) settle(entry model.FrontierEntry, out outcome) {
	e.accounting.RLock()
	defer e.accounting.RUnlock()

	if out.aborted {
		e.frontier.Requeue(entry)
		return
	}

	if out.resp != nil {
		e.stats.Fetched(out.host, int64(len(out.resp.Body)), out.resp.Duration)
	}
	switch {
	case out.accepted:
		e.stats.Downloaded()
	case out.filterReason != "":
		e.stats.Filtered(out.filterReason)
	case out.policyReason != "":
		e.stats.PolicyRejected(out.policyReason)
	case out.errKind != "":
		e.stats.Error(out.errKind)
	}
	e.frontier.Done(entry.URL, out.accepted)

	if out.accepted && e.acceptedThisRun.Add(1)%int64(e.cfg.CheckpointEvery) == 0 {
		e.requestCheckpoint()
	}
}

// recordError appends to the store's error log when it keeps one.
func (e *Engine) recordError(url string, kind model.ErrorKind, message string) {
	rec, ok := e.store.(ErrorRecorder)
	if !ok {
		return
	}
	if err := rec.RecordError(context.Background(), e.session.ID, url, kind, message); err != nil {
		e.logger.Warn("failed to record error", "url", url, "kind", kind, "error", err)
	}
}
