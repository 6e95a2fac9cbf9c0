// Package agents implements the cloud-side reply pipeline: a coordinator
// that shields PII, classifies the query, dispatches to a specialist, and
// filters the result for safety before it goes back over SMS.
package agents

import (
	"context"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/internal/types"
)

// Request is one query handed to the coordinator or a specialist.
type Request struct {
	Sender  string
	Message string
	History []types.Turn
	Urgency types.Urgency
}

// Response is a specialist's answer with its provenance.
type Response struct {
	Text       string
	Confidence float64
	Sources    []string
	Metadata   map[string]any
}

// Specialist answers queries in one clinical category.
type Specialist interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// Retriever supplies category-scoped guideline passages.
type Retriever interface {
	SearchCategory(ctx context.Context, query, category string, topK int, threshold float64) ([]rag.Scored, error)
}

const (
	specialistTopK      = 3
	specialistMaxTokens = 200
)

// avgScore averages retrieval scores. An empty retrieval scores 0.5 so
// confidence math stays defined when no guideline matched.
func avgScore(scored []rag.Scored) float64 {
	if len(scored) == 0 {
		return 0.5
	}
	var sum float64
	for _, s := range scored {
		sum += s.Score
	}
	return sum / float64(len(scored))
}

func sources(scored []rag.Scored) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Chunk.Source)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
