package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

func searchServer(t *testing.T, capture *map[string]any, points []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/statutes/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if capture != nil {
			*capture = body
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": points})
	}))
}

func TestDenseBackendSearch(t *testing.T) {
	var captured map[string]any
	server := searchServer(t, &captured, []map[string]any{
		{"score": 0.91, "payload": map[string]any{"doc_id": "bgb-106", "text": "Geschäftsfähigkeit", "section": "§106", "title": "BGB"}},
		{"score": 0.74, "payload": map[string]any{"doc_id": "bgb-104", "text": "Geschäftsunfähigkeit"}},
	})
	defer server.Close()

	backend := NewDenseBackend(NewClient(server.URL, "statutes"), &fakeEmbedder{vector: []float32{0.1, 0.2}})
	entries, err := backend.Search(context.Background(), "BGB Minderjährige", 5, domain.SearchFilters{"jurisdiction": "DE"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].DocID != "bgb-106" || entries[0].Rank != 1 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].Section != "§106" {
		t.Fatalf("section = %q, want §106", entries[0].Section)
	}
	if entries[0].Metadata["title"] != "BGB" {
		t.Fatalf("metadata title = %q", entries[0].Metadata["title"])
	}
	if entries[1].Rank != 2 {
		t.Fatalf("ranks not contiguous: %d", entries[1].Rank)
	}

	if captured["filter"] == nil {
		t.Fatal("filters not forwarded to qdrant")
	}
	if captured["vector"] == nil {
		t.Fatal("query vector missing from request")
	}
}

func TestDenseBackendEmbedderFailure(t *testing.T) {
	server := searchServer(t, nil, nil)
	defer server.Close()

	backend := NewDenseBackend(NewClient(server.URL, "statutes"), &fakeEmbedder{err: context.DeadlineExceeded})
	if _, err := backend.Search(context.Background(), "q", 5, nil); err == nil {
		t.Fatal("expected embedder error to propagate")
	}
}

func TestSparseBackendSearch(t *testing.T) {
	var captured map[string]any
	server := searchServer(t, &captured, []map[string]any{
		{"score": 3.2, "payload": map[string]any{"doc_id": "lbo-64"}},
	})
	defer server.Close()

	backend := NewSparseBackend(NewClient(server.URL, "statutes"))
	entries, err := backend.Search(context.Background(), "Bauantrag Stuttgart", 5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].DocID != "lbo-64" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].SourceType != "lexical" {
		t.Fatalf("source type = %q", entries[0].SourceType)
	}

	vector, ok := captured["vector"].(map[string]any)
	if !ok {
		t.Fatalf("sparse request vector malformed: %v", captured["vector"])
	}
	if vector["name"] != sparseVectorName {
		t.Fatalf("sparse vector name = %v", vector["name"])
	}
}

func TestSparseBackendNoiseQueryShortCircuits(t *testing.T) {
	// No tokens, no HTTP call.
	backend := NewSparseBackend(NewClient("http://127.0.0.1:1", "statutes"))
	entries, err := backend.Search(context.Background(), "!!! ---", 5, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestClientSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	backend := NewDenseBackend(NewClient(server.URL, "statutes"), &fakeEmbedder{vector: []float32{0.1}})
	if _, err := backend.Search(context.Background(), "q", 5, nil); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
