// Package cli formats lexembed command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/lexembed/internal/models"
	"github.com/hyperjump/lexembed/internal/server"
	"github.com/hyperjump/lexembed/internal/vector"
	"github.com/hyperjump/lexembed/pkg/utils"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is the raw vectors exactly as the server returns them.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or compact)", s)
	}
}

const (
	previewValues = 5
	previewChars  = 60
)

// Embedding pairs an input text with its vector for output.
type Embedding struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

// WriteEmbeddings writes one vector per text in the given format.
func WriteEmbeddings(w io.Writer, texts []string, vecs [][]float32, format OutputFormat) error {
	if len(texts) != len(vecs) {
		return fmt.Errorf("%d texts but %d vectors", len(texts), len(vecs))
	}
	switch format {
	case OutputCompact:
		return json.NewEncoder(w).Encode(vecs)
	case OutputJSON:
		out := make([]Embedding, len(vecs))
		for i, v := range vecs {
			out[i] = Embedding{Index: i, Text: texts[i], Dimension: len(v), Embedding: v}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		for i, v := range vecs {
			fmt.Fprintf(w, "[%d] %q\n", i, utils.Truncate(texts[i], previewChars))
			fmt.Fprintf(w, "    dim=%d norm=%.4f %s\n", len(v), utils.L2Norm(v), previewVector(v))
		}
		return nil
	}
}

func previewVector(v []float32) string {
	n := min(previewValues, len(v))
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.4f", v[i])
	}
	s := "[" + strings.Join(parts, ", ")
	if len(v) > n {
		s += ", ..."
	}
	return s + "]"
}

// WriteChunks writes embedded chunks. JSON and compact both emit one JSON object per line.
func WriteChunks(w io.Writer, chunks []*models.DocumentChunk, format OutputFormat) error {
	if format == OutputJSON || format == OutputCompact {
		enc := json.NewEncoder(w)
		for _, ch := range chunks {
			if err := enc.Encode(ch); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ch := range chunks {
		fmt.Fprintf(w, "%s (%d/%d, %d chars, dim=%d)\n", ch.ID, ch.ChunkIndex+1, ch.TotalChunks,
			len([]rune(ch.Content)), len(ch.Embedding))
		fmt.Fprintf(w, "    %s\n", utils.Truncate(ch.Content, previewChars))
	}
	return nil
}

// WriteDocument writes a one-line summary of an embedded document in text format.
func WriteDocument(w io.Writer, doc *models.Document, chunks int) {
	fmt.Fprintf(w, "Document %s [%s] %q: %d chunks, sha256 %s\n",
		doc.ID, doc.Kind, utils.Truncate(doc.Metadata.Title, previewChars), chunks, utils.Truncate(doc.Hash, 12))
}

// Ranked is a candidate text scored against a query.
type Ranked struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// RankResults resolves index hits (whose ids are candidate positions) to their texts.
func RankResults(results []vector.Result, texts map[string]string) []Ranked {
	out := make([]Ranked, len(results))
	for i, r := range results {
		out[i] = Ranked{Rank: i + 1, Score: r.Score, Text: texts[r.ID]}
	}
	return out
}

// WriteRanked writes similarity results.
func WriteRanked(w io.Writer, query string, ranked []Ranked, format OutputFormat) error {
	if format == OutputJSON || format == OutputCompact {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Query   string   `json:"query"`
			Results []Ranked `json:"results"`
		}{query, ranked})
	}
	fmt.Fprintf(w, "Query: %q\n\n", utils.Truncate(query, previewChars))
	for _, r := range ranked {
		fmt.Fprintf(w, "%2d. %.4f  %s\n", r.Rank, r.Score, utils.Truncate(r.Text, previewChars))
	}
	return nil
}

// WriteHealth writes a health report.
func WriteHealth(w io.Writer, url string, h *server.HealthResponse, format OutputFormat) error {
	if format == OutputJSON || format == OutputCompact {
		return json.NewEncoder(w).Encode(h)
	}
	fmt.Fprintf(w, "%s is %s\n", url, h.Status)
	fmt.Fprintf(w, "  model:        %s\n", h.Model)
	fmt.Fprintf(w, "  device:       %s\n", h.Device)
	fmt.Fprintf(w, "  method:       %s\n", h.Method)
	fmt.Fprintf(w, "  architecture: %s\n", h.Architecture)
	return nil
}
