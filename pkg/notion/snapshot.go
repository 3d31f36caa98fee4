package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/model"
)

// QueryAll fetches all pages from a Notion database, handling pagination.
// Rate limiting is enforced by the Client (3 req/s by default).
// Uses prefetch: starts fetching page N+1 in a goroutine while processing
// page N, reducing effective latency for multi-page results.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	// Prefetch state: holds the result of a prefetched next page.
	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			// We already have a prefetched result pending.
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, req)
		}

		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}

		// Start prefetching the next page in a goroutine.
		nextReq := &notionapi.DatabaseQueryRequest{
			StartCursor: resp.NextCursor,
		}
		if filter != nil {
			nextReq.Filter = filter.Filter
			nextReq.Sorts = filter.Sorts
			nextReq.PageSize = filter.PageSize
		}

		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// LoadSnapshot materializes the full mod database as a read-only snapshot.
// Every page becomes a Candidate; pages with no parsable title are skipped
// with a warning rather than failing the whole load. The snapshot fingerprint
// is recomputed here, on every load.
func LoadSnapshot(ctx context.Context, c Client, dbID string) (*model.Snapshot, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notion: load snapshot")
	}

	entries := make([]model.Candidate, 0, len(pages))
	for _, p := range pages {
		cand := parseCandidatePage(p)
		if cand.Title == "" {
			zap.L().Warn("notion: skipping entry with empty title",
				zap.String("page_id", string(p.ID)),
			)
			continue
		}
		entries = append(entries, cand)
	}

	snap := &model.Snapshot{
		Entries:     entries,
		Fingerprint: model.Fingerprint(entries),
		LoadedAt:    time.Now().UTC(),
	}

	zap.L().Info("notion: snapshot loaded",
		zap.Int("entries", len(snap.Entries)),
		zap.String("fingerprint", snap.Fingerprint),
	)
	return snap, nil
}

// parseCandidatePage maps a Notion page onto a Candidate. The title property
// may be named anything, so the first title-typed property wins; the URL
// comes from a "URL" property when present.
func parseCandidatePage(p notionapi.Page) model.Candidate {
	cand := model.Candidate{ID: string(p.ID)}

	for _, prop := range p.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			cand.Title = plainText(tp.Title)
			break
		}
	}

	if prop, ok := p.Properties["URL"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			cand.URL = up.URL
		}
	}

	return cand
}

// plainText concatenates the plain text of a rich text array.
func plainText(rich []notionapi.RichText) string {
	var out string
	for _, rt := range rich {
		out += rt.PlainText
	}
	return out
}
