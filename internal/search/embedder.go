package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
)

// Embedder turns text into a fixed-dimension vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashingEmbedder is a deterministic, dependency-free embedder: tokens are
// hashed into a fixed number of buckets and the resulting vector is
// L2-normalized. Quality is far below a learned model, but it keeps local
// development and tests self-contained, and cosine distance over hashed
// bags of words still surfaces lexical overlap.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder with the given number of
// dimensions. Values below 1 fall back to 256.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims < 1 {
		dims = 256
	}
	return &HashingEmbedder{dims: dims}
}

func (e *HashingEmbedder) Dimensions() int { return e.dims }

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]{}")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dims)]++ //nolint:gosec // dims is a small positive int
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// HTTPDoer is the subset of http.Client used by RemoteEmbedder, satisfied
// by the resilience client.
type HTTPDoer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RemoteEmbedder calls an external embedding service over HTTP. The wire
// format is a minimal JSON contract: {"input": "..."} in, {"embedding":
// [...]} out.
type RemoteEmbedder struct {
	client HTTPDoer
	url    string
	dims   int
}

// NewRemoteEmbedder creates an embedder backed by the embedding service at
// url, producing vectors of the given dimension.
func NewRemoteEmbedder(client HTTPDoer, url string, dims int) *RemoteEmbedder {
	return &RemoteEmbedder{client: client, url: url, dims: dims}
}

func (e *RemoteEmbedder) Dimensions() int { return e.dims }

func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]string{"input": text})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(decoded.Embedding) != e.dims {
		return nil, fmt.Errorf("embedding service returned %d dimensions, expected %d", len(decoded.Embedding), e.dims)
	}
	return decoded.Embedding, nil
}
