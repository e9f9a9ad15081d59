package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical unit vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"unnormalized inputs", []float32{2, 0, 0}, []float32{5, 0, 0}, 1.0},
		{"halfway", []float32{1, 0, 0}, []float32{0.5, 0.8660254, 0}, 0.5},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{1.0, 1.0},
		{-1.0, 0.0},
		{0.0, 0.5},
		{0.7, 0.85},
		{0.3, 0.65},
	}
	for _, tt := range tests {
		if got := Normalize(tt.raw); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	// Monotonic over [-1, 1].
	prev := Normalize(-1.0)
	for raw := -0.9; raw <= 1.0; raw += 0.1 {
		cur := Normalize(raw)
		if cur <= prev {
			t.Fatalf("Normalize not monotonic at %v: %v <= %v", raw, cur, prev)
		}
		prev = cur
	}
}

func TestL2Normalize(t *testing.T) {
	v := l2Normalize([]float32{3, 4})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("normalized magnitude = %v, want 1", math.Sqrt(sum))
	}

	// Zero vector passes through unchanged.
	z := l2Normalize([]float32{0, 0, 0})
	for _, x := range z {
		if x != 0 {
			t.Errorf("zero vector changed: %v", z)
		}
	}
}

// newEmbeddingsStub serves an OpenAI-compatible /embeddings endpoint that,
// like the real API, rejects empty input with a 400.
func newEmbeddingsStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		if len(req.Input) == 0 || req.Input[0] == "" {
			http.Error(w, `{"error":{"message":"'$.input' is invalid"}}`, http.StatusBadRequest)
			return
		}
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{3, 4, 0}},
			},
			"model": "test-model",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode stub response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEncode(t *testing.T) {
	srv := newEmbeddingsStub(t)
	c := NewClient(srv.URL, "test-key", "test-model")

	t.Run("normalizes the API vector", func(t *testing.T) {
		v, err := c.Encode(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		want := []float32{0.6, 0.8, 0}
		if len(v) != len(want) {
			t.Fatalf("vector length = %d, want %d", len(v), len(want))
		}
		for i := range want {
			if math.Abs(float64(v[i]-want[i])) > 1e-6 {
				t.Errorf("v[%d] = %v, want %v", i, v[i], want[i])
			}
		}
	})

	t.Run("empty text never reaches the API", func(t *testing.T) {
		// The stub 400s on empty input, so a non-error result proves
		// the call was short-circuited.
		v, err := c.Encode(context.Background(), "")
		if err != nil {
			t.Fatalf("Encode(\"\"): %v", err)
		}
		for _, x := range v {
			if x != 0 {
				t.Fatalf("empty text vector = %v, want all zeros", v)
			}
		}
		if got := Cosine(v, []float32{0.6, 0.8, 0}); got != 0 {
			t.Errorf("Cosine(empty, reference) = %v, want 0", got)
		}
	})
}

type stubEncoder map[string][]float32

func (e stubEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	v, ok := e[text]
	if !ok {
		return []float32{0, 0, 1}, nil
	}
	return v, nil
}

func TestScore(t *testing.T) {
	enc := stubEncoder{
		"a": {1, 0, 0},
		"b": {1, 0, 0},
		"c": {0, 1, 0},
	}

	raw, norm, err := Score(context.Background(), enc, "a", "b")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(raw-1.0) > 1e-6 || math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("Score(a, b) = (%v, %v), want (1, 1)", raw, norm)
	}

	raw, norm, err = Score(context.Background(), enc, "a", "c")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(raw) > 1e-6 || math.Abs(norm-0.5) > 1e-6 {
		t.Errorf("Score(a, c) = (%v, %v), want (0, 0.5)", raw, norm)
	}
}

func TestScoreDeterministic(t *testing.T) {
	enc := stubEncoder{"x": {0.6, 0.8, 0}, "y": {0, 1, 0}}
	raw1, _, err := Score(context.Background(), enc, "x", "y")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	raw2, _, err := Score(context.Background(), enc, "x", "y")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if raw1 != raw2 {
		t.Errorf("same inputs scored differently: %v vs %v", raw1, raw2)
	}
}

func TestLazyInitOnce(t *testing.T) {
	var mu sync.Mutex
	inits := 0
	lazy := NewLazy(func() (Encoder, error) {
		mu.Lock()
		inits++
		mu.Unlock()
		return stubEncoder{"t": {1, 0, 0}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lazy.Encode(context.Background(), "t"); err != nil {
				t.Errorf("Encode: %v", err)
			}
		}()
	}
	wg.Wait()

	if inits != 1 {
		t.Errorf("encoder initialized %d times, want 1", inits)
	}
}

func TestLazyInitFailureIsSticky(t *testing.T) {
	initErr := errors.New("model load failed")
	inits := 0
	lazy := NewLazy(func() (Encoder, error) {
		inits++
		return nil, initErr
	})

	for i := 0; i < 3; i++ {
		_, err := lazy.Encode(context.Background(), "t")
		if !errors.Is(err, initErr) {
			t.Fatalf("Encode err = %v, want wrapped %v", err, initErr)
		}
	}
	if inits != 1 {
		t.Errorf("failed init retried %d times, want 1", inits)
	}
}
