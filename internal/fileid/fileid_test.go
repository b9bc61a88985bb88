package fileid

import (
	"testing"

	"github.com/google/uuid"
)

func TestFileDocID(t *testing.T) {
	id1 := FileDocID("/atti/sentenza.pdf")
	id2 := FileDocID("/atti/./sentenza.pdf")
	if id1 != id2 {
		t.Errorf("equivalent paths should give the same id: %q vs %q", id1, id2)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("id should be a UUID: %v", err)
	}
	if FileDocID("/atti/ordinanza.pdf") == id1 {
		t.Error("different paths should give different ids")
	}
}

func TestNewDocID(t *testing.T) {
	a, b := NewDocID(), NewDocID()
	if a == b {
		t.Error("random ids should differ")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("id should be a UUID: %v", err)
	}
}

func TestHash(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Hash("abc"); got != want {
		t.Errorf("Hash(abc) = %s, want %s", got, want)
	}
	if Hash("") == Hash(" ") {
		t.Error("different content should hash differently")
	}
}
