package ai

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbeddingService is a deterministic in-memory EmbeddingService for
// tests. Unknown texts get a hash-derived unit vector; tests that need
// controlled geometry register vectors explicitly with SetVector.
type MockEmbeddingService struct {
	mu         sync.RWMutex
	dimensions int
	vectors    map[string][]float32
}

// NewMockEmbeddingService creates a mock embedder with the given
// dimensionality.
func NewMockEmbeddingService(dimensions int) *MockEmbeddingService {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockEmbeddingService{
		dimensions: dimensions,
		vectors:    map[string][]float32{},
	}
}

// SetVector registers a fixed vector for a text.
func (m *MockEmbeddingService) SetVector(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vector
}

func (m *MockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *MockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if vector, ok := m.vectors[text]; ok {
			vectors[i] = vector
			continue
		}
		vectors[i] = m.hashVector(text)
	}
	return vectors, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) hashVector(text string) []float32 {
	vector := make([]float32, m.dimensions)
	var norm float64
	for i := 0; i < m.dimensions; i++ {
		h := fnv.New32a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		v := float32(h.Sum32()%1000)/500.0 - 1.0
		vector[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

// MockLLMService is a scripted LLMService for tests. Responses are
// returned in registration order; once exhausted the default response is
// used. A non-nil Err makes every call fail.
type MockLLMService struct {
	mu        sync.Mutex
	responses []string
	next      int

	Default string
	Err     error

	// Calls records the prompts of every Complete invocation.
	Calls []struct {
		SystemPrompt string
		UserPrompt   string
	}
}

// NewMockLLMService creates a mock generation service.
func NewMockLLMService(responses ...string) *MockLLMService {
	return &MockLLMService{responses: responses, Default: "[]"}
}

func (m *MockLLMService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, struct {
		SystemPrompt string
		UserPrompt   string
	}{systemPrompt, userPrompt})

	if m.Err != nil {
		return "", m.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.next < len(m.responses) {
		response := m.responses[m.next]
		m.next++
		return response, nil
	}
	return m.Default, nil
}
