// Package models defines the documents and chunks produced by the embedding pipeline.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a legal document.
type Kind string

const (
	KindLaw           Kind = "LAW"
	KindJurisprudence Kind = "JURISPRUDENCE"
	KindArticle       Kind = "ARTICLE"
	KindText          Kind = "TEXT"
	KindPDF           Kind = "PDF"
	KindCivilCode     Kind = "CIVIL_CODE"
	KindOther         Kind = "OTHER"
)

var kinds = []Kind{KindLaw, KindJurisprudence, KindArticle, KindText, KindPDF, KindCivilCode, KindOther}

// ParseKind accepts a kind name in any case. The empty string yields KindText.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindText, nil
	}
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Metadata describes where a document came from.
type Metadata struct {
	Title  string    `json:"title,omitempty"`
	Author string    `json:"author,omitempty"`
	Source string    `json:"source,omitempty"`
	Pages  int       `json:"pages,omitempty"`
	Date   time.Time `json:"date,omitzero"`
}

// Document is a whole text before chunking.
type Document struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"-"`
	Metadata  Metadata  `json:"metadata"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is one piece of a document, sized for the encoder.
type DocumentChunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Kind        Kind      `json:"kind"`
	Content     string    `json:"content"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Hash        string    `json:"hash"`
	Metadata    Metadata  `json:"metadata"`
	Embedding   []float32 `json:"embedding,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChunkID names the index-th chunk of a document.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}
