// Package ingest pulls the source-system feed and turns unseen events into
// PENDING integration requests. The feed is untrusted and re-read in full:
// the diff against already-known natural keys is what keeps ingestion
// idempotent.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crossgrid/orchestrator/internal/domain"
	"github.com/crossgrid/orchestrator/internal/store"
)

// SourceConfig locates the feed, passed explicitly per call.
type SourceConfig struct {
	BaseURL      string
	FetchTimeout time.Duration
}

// RequestCreator is the slice of the orchestrator the ingestor needs.
type RequestCreator interface {
	Create(ctx context.Context, eventType domain.EventType, payload json.RawMessage) (*domain.IntegrationRequest, error)
}

// SyncResult counts one feed pass.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Ingestor struct {
	store      store.RequestStore
	creator    RequestCreator
	httpClient *http.Client
	logger     *slog.Logger
}

func NewIngestor(s store.RequestStore, creator RequestCreator, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:      s,
		creator:    creator,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Sync fetches the feed for one event type and creates a request for every
// item whose natural key has never been seen. Per-item failures are counted,
// not fatal.
func (i *Ingestor) Sync(ctx context.Context, eventType domain.EventType, src SourceConfig) (*SyncResult, error) {
	payloads, err := i.fetch(ctx, eventType, src)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", eventType, err)
	}

	result := &SyncResult{Fetched: len(payloads)}
	for _, payload := range payloads {
		ev, err := domain.DecodeEvent(eventType, payload)
		if err != nil {
			i.logger.Warn("skipping undecodable feed item", "event_type", eventType, "error", err)
			result.Failed++
			continue
		}

		known, err := i.store.ExistsByNaturalKey(ctx, ev.NaturalKey())
		if err != nil {
			return result, fmt.Errorf("diff feed item: %w", err)
		}
		if known {
			result.Skipped++
			continue
		}

		if _, err := i.creator.Create(ctx, eventType, payload); err != nil {
			i.logger.Warn("failed to ingest feed item",
				"event_type", eventType,
				"natural_key", ev.NaturalKey(),
				"error", err,
			)
			result.Failed++
			continue
		}
		result.Created++
	}

	i.logger.Info("feed sync finished",
		"event_type", eventType,
		"fetched", result.Fetched,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// fetch reads the feed with bounded exponential backoff on transient errors.
func (i *Ingestor) fetch(ctx context.Context, eventType domain.EventType, src SourceConfig) ([]json.RawMessage, error) {
	url := fmt.Sprintf("%s/events/%s", src.BaseURL, eventType)

	var payloads []json.RawMessage
	operation := func() error {
		timeout := src.FetchTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := i.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("source feed returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		payloads = nil
		if err := json.Unmarshal(body, &payloads); err != nil {
			return backoff.Permanent(fmt.Errorf("decode feed: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return payloads, nil
}
