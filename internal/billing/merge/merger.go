// Package merge appends externally stored documents (lab report PDFs) after
// the composed invoice document.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// ErrNoPrimary means there is nothing to merge onto; the operation fails as
// a whole only in this case.
var ErrNoPrimary = errors.New("primary document is required")

// Location points at one external document: either a direct URL or a
// storage key that the resolver turns into a time-limited URL.
type Location struct {
	URL        string
	StorageKey string
}

// Resolver resolves storage keys to fetchable, signed URLs.
type Resolver interface {
	Presign(ctx context.Context, key string) (string, error)
}

const (
	fetchConcurrency = 4
	fetchTimeout     = 20 * time.Second
	maxDocumentSize  = 32 << 20
)

type Merger struct {
	client   *http.Client
	resolver Resolver
	log      *zap.Logger
	conf     *model.Configuration
}

func New(resolver Resolver, log *zap.Logger) *Merger {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Merger{
		client:   &http.Client{Timeout: fetchTimeout},
		resolver: resolver,
		log:      log.Named("billing.merge"),
		conf:     conf,
	}
}

// Merge appends each resolvable location's pages after the primary
// document, in list order. A location that cannot be fetched or appended is
// logged and omitted; the output degrades to "invoice only" rather than
// failing.
func (m *Merger) Merge(ctx context.Context, primary []byte, locations []Location) ([]byte, error) {
	if len(primary) == 0 {
		return nil, ErrNoPrimary
	}
	if len(locations) == 0 {
		return primary, nil
	}

	docs := m.fetchAll(ctx, locations)

	merged := primary
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		next, err := mergePair(merged, doc, m.conf)
		if err != nil {
			m.log.Warn("skipping unmergeable document",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		merged = next
	}
	return merged, nil
}

// fetchAll fetches every location concurrently and returns the bodies
// indexed by their position in locations. A failed fetch leaves a nil slot;
// final assembly order is the caller's list order, never completion order.
func (m *Merger) fetchAll(ctx context.Context, locations []Location) [][]byte {
	results := make([][]byte, len(locations))

	sem := make(chan struct{}, fetchConcurrency)
	var wg sync.WaitGroup
	for i, loc := range locations {
		wg.Add(1)
		go func(i int, loc Location) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := m.fetchOne(ctx, loc)
			if err != nil {
				m.log.Warn("skipping unreachable document",
					zap.Int("index", i),
					zap.String("url", loc.URL),
					zap.String("storage_key", loc.StorageKey),
					zap.Error(err),
				)
				return
			}
			results[i] = data
		}(i, loc)
	}
	wg.Wait()

	return results
}

func (m *Merger) fetchOne(ctx context.Context, loc Location) ([]byte, error) {
	url := loc.URL
	if url == "" {
		if loc.StorageKey == "" {
			return nil, errors.New("empty location")
		}
		if m.resolver == nil {
			return nil, errors.New("no storage resolver configured")
		}
		resolved, err := m.resolver.Presign(ctx, loc.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", loc.StorageKey, err)
		}
		url = resolved
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty document body")
	}
	return data, nil
}

// mergePair appends b's pages after a's. Merging one document at a time
// keeps a single bad attachment from poisoning the whole output.
func mergePair(a, b []byte, conf *model.Configuration) ([]byte, error) {
	readers := []io.ReadSeeker{bytes.NewReader(a), bytes.NewReader(b)}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
