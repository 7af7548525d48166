// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultWeaviateClass holds reference tests in Weaviate.
const DefaultWeaviateClass = "FoundryTest"

// WeaviateStore is a Store backed by a Weaviate class with externally
// supplied vectors.
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// NewWeaviateStore connects to the Weaviate server at rawURL. class defaults
// to DefaultWeaviateClass. No request is made until EnsureSchema or a Store
// method is called.
func NewWeaviateStore(rawURL, class string, logger *slog.Logger) (*WeaviateStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid weaviate url %q", ErrStoreUnavailable, rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if class == "" {
		class = DefaultWeaviateClass
	}
	return &WeaviateStore{client: client, class: class, logger: logger}, nil
}

// Schema returns the class definition for reference tests.
func (s *WeaviateStore) Schema() *models.Class {
	return &models.Class{
		Class:       s.class,
		Description: "Reference Foundry tests keyed by the Solidity function they exercise.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "docId", DataType: []string{"text"}, Description: "Stable document ID."},
			{Name: "function", DataType: []string{"text"}, Description: "Solidity source of the function."},
			{Name: "tests", DataType: []string{"text"}, Description: "JSON list of Foundry test functions."},
			{Name: "description", DataType: []string{"text"}, Description: "Plain-text behavior summary."},
		},
	}
}

// EnsureSchema creates the class if it does not exist yet.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.Schema().ClassGetter().WithClassName(s.class).Do(ctx); err == nil {
		s.logger.Debug("Schema already exists", slog.String("class", s.class))
		return nil
	}
	s.logger.Info("Schema not found, creating it", slog.String("class", s.class))
	if err := s.client.Schema().ClassCreator().WithClass(s.Schema()).Do(ctx); err != nil {
		return fmt.Errorf("%w: create class %s: %v", ErrStoreUnavailable, s.class, err)
	}
	return nil
}

// Upsert implements Store. The batch endpoint replaces objects with the same
// ID.
func (s *WeaviateStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%w: %d documents, %d vectors", ErrVectorMismatch, len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}
	objects := make([]*models.Object, len(docs))
	for i, doc := range docs {
		obj, err := s.toObject(doc, vectors[i])
		if err != nil {
			return err
		}
		objects[i] = obj
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch import: %v", ErrStoreUnavailable, err)
	}
	failed := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			failed++
			for _, errItem := range item.Result.Errors.Error {
				s.logger.Warn("Error in Weaviate batch item", slog.String("id", item.ID.String()), slog.String("error", errItem.Message))
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("weaviate batch import: %d of %d objects failed", failed, len(objects))
	}
	return nil
}

func (s *WeaviateStore) toObject(doc Document, vector []float32) (*models.Object, error) {
	if doc.ID == "" {
		doc.ID = DocumentID(doc.Function)
	}
	tests, err := json.Marshal(doc.Tests)
	if err != nil {
		return nil, fmt.Errorf("marshal tests for %s: %w", doc.ID, err)
	}
	return &models.Object{
		Class:  s.class,
		ID:     strfmt.UUID(doc.ID),
		Vector: vector,
		Properties: map[string]interface{}{
			"docId":       doc.ID,
			"function":    doc.Function,
			"tests":       string(tests),
			"description": doc.Description,
		},
	}, nil
}

// Search implements Store.
func (s *WeaviateStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "docId"},
		{Name: "function"},
		{Name: "tests"},
		{Name: "description"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStoreUnavailable, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}
	return parseSearchResponse(result, s.class)
}

type weaviateHit struct {
	DocID       string `json:"docId"`
	Function    string `json:"function"`
	Tests       string `json:"tests"`
	Description string `json:"description"`
	Additional  struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

func parseSearchResponse(resp *models.GraphQLResponse, class string) ([]Match, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal GraphQL response data: %w", err)
	}
	var parsed struct {
		Get map[string][]weaviateHit `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal GraphQL response data: %w", err)
	}

	hits := parsed.Get[class]
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		var tests []string
		if h.Tests != "" {
			if err := json.Unmarshal([]byte(h.Tests), &tests); err != nil {
				return nil, fmt.Errorf("decode tests of %s: %w", h.DocID, err)
			}
		}
		matches = append(matches, Match{
			Document: Document{ID: h.DocID, Function: h.Function, Tests: tests, Description: h.Description},
			Score:    h.Additional.Certainty,
		})
	}
	return matches, nil
}

// Count implements Store.
func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: aggregate: %v", ErrStoreUnavailable, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("aggregate error: %s", result.Errors[0].Message)
	}
	return parseCountResponse(result, s.class)
}

func parseCountResponse(resp *models.GraphQLResponse, class string) (int, error) {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal GraphQL response data: %w", err)
	}
	var parsed struct {
		Aggregate map[string][]struct {
			Meta struct {
				Count int `json:"count"`
			} `json:"meta"`
		} `json:"Aggregate"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("unmarshal GraphQL response data: %w", err)
	}
	groups := parsed.Aggregate[class]
	if len(groups) == 0 {
		return 0, nil
	}
	return groups[0].Meta.Count, nil
}

// Close implements Store. The HTTP client holds no resources.
func (s *WeaviateStore) Close() error { return nil }
