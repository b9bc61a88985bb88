package indexer

import (
	"testing"
	"time"

	"github.com/hyperjump/lexembed/internal/models"
)

func TestPreprocess(t *testing.T) {
	tests := map[string]string{
		"  a  b  ":             "a b",
		"Art. 1\n\n\tComma 2": "Art. 1 Comma 2",
		"":                     "",
		" \n ":                 "",
		"perche\u0301":         "perch\u00e9",
	}
	for in, want := range tests {
		if got := Preprocess(in); got != want {
			t.Errorf("Preprocess(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractMetadata(t *testing.T) {
	meta := ExtractMetadata("Corte di Cassazione, sez. III\nSentenza del 05/03/2021, depositata il 31/02/2021.")
	if meta.Title != "Corte di Cassazione, sez. III" {
		t.Errorf("title: got %q", meta.Title)
	}
	want := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)
	if !meta.Date.Equal(want) {
		t.Errorf("date: got %v, want %v", meta.Date, want)
	}
}

func TestExtractMetadata_Edges(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'a'
	}
	meta := ExtractMetadata(string(long) + "\n31-12-99")
	if meta.Title != "" {
		t.Error("over-long first line should not become the title")
	}
	if meta.Date.Year() != 1999 || meta.Date.Month() != time.December {
		t.Errorf("date: got %v", meta.Date)
	}

	meta = ExtractMetadata("senza data 31/02/2020")
	if !meta.Date.IsZero() {
		t.Errorf("impossible date should be ignored, got %v", meta.Date)
	}
}

func TestMergeMetadata(t *testing.T) {
	base := models.Metadata{Title: "Dato", Pages: 0}
	got := mergeMetadata(base, models.Metadata{Title: "Estratto", Author: "Autore", Pages: 3})
	if got.Title != "Dato" || got.Author != "Autore" || got.Pages != 3 {
		t.Errorf("unexpected merge: %+v", got)
	}
}
