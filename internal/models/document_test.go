package models

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindText, false},
		{"law", KindLaw, false},
		{" civil_code ", KindCivilCode, false},
		{"JURISPRUDENCE", KindJurisprudence, false},
		{"contract", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc", 3); got != "doc_chunk_3" {
		t.Errorf("ChunkID = %q", got)
	}
}
