package archive

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
)

func TestPut_StoresObjectRetrievableByGet(t *testing.T) {
	store := NewStore(arbor.NewLogger())

	err := store.Put(context.Background(), "poison-pills/x.json", "application/json", []byte(`{"a":1}`), map[string]string{"message-id": "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obj, ok := store.Get("poison-pills/x.json")
	if !ok {
		t.Fatal("expected object to be retrievable after Put")
	}
	if obj.ContentType != "application/json" {
		t.Errorf("ContentType = %q", obj.ContentType)
	}
	if obj.Metadata["message-id"] != "m1" {
		t.Errorf("Metadata[message-id] = %q", obj.Metadata["message-id"])
	}
}

func TestPut_RejectsEmptyKey(t *testing.T) {
	store := NewStore(arbor.NewLogger())
	if err := store.Put(context.Background(), "", "application/json", nil, nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestGet_MissingKeyReportsNotOK(t *testing.T) {
	store := NewStore(arbor.NewLogger())
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected ok=false for a key never written")
	}
}
