package main

import (
	"context"
	"encoding/json"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rategrid/contract-extractor/internal/extractor"
	"github.com/rategrid/contract-extractor/internal/invoker"
	"github.com/rategrid/contract-extractor/internal/model"
	"github.com/rategrid/contract-extractor/internal/resilience"
	"github.com/rategrid/contract-extractor/internal/store"
	"github.com/rategrid/contract-extractor/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

func newExtractor() (*extractor.Extractor, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.Wrap(invoker.ErrUpstreamUnavailable, "anthropic key not configured")
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	inv, err := invoker.New(client, invoker.Options{
		Model:             cfg.Anthropic.Model,
		Timeout:           time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		Burst:             cfg.Anthropic.Burst,
		Retry: resilience.FromConfig(
			cfg.Retry.MaxAttempts,
			cfg.Retry.InitialBackoffMs,
			cfg.Retry.MaxBackoffMs,
		),
	})
	if err != nil {
		return nil, err
	}

	return extractor.New(inv, extractor.Options{
		BatchSize:           cfg.Extractor.BatchSize,
		RetryCeiling:        cfg.Extractor.RetryCeiling,
		StructureMaxTokens:  cfg.Extractor.StructureMaxTokens,
		PricingMaxTokens:    cfg.Extractor.PricingMaxTokens,
		MultiplierMaxTokens: cfg.Extractor.MultiplierMaxTokens,
	}), nil
}

// loadDocument reads a contract file and infers its MIME type from the
// extension. PDFs and the common image formats are accepted.
func loadDocument(path string) (extractor.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extractor.Document{}, eris.Wrapf(err, "read document %s", path)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	return extractor.Document{Bytes: data, MIMEType: mimeType}, nil
}

// loadContext reads an optional extraction-context JSON file holding the
// caller's room and meal-plan catalogs.
func loadContext(path string) (model.ExtractionContext, error) {
	var ec model.ExtractionContext
	if path == "" {
		return ec, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ec, eris.Wrapf(err, "read context %s", path)
	}
	if err := json.Unmarshal(data, &ec); err != nil {
		return ec, eris.Wrapf(err, "parse context %s", path)
	}
	return ec, nil
}
