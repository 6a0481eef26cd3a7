package checksum

import "testing"

func TestSum(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestDocument(t *testing.T) {
	plain := Document(nil, "body")
	if plain != Sum([]byte("body")) {
		t.Error("document without metadata should hash its body")
	}
	titled := Document(map[string]any{"title": "A"}, "body")
	if titled == plain {
		t.Error("metadata should change the fingerprint")
	}
	if Document(map[string]any{"title": "A"}, "body") != titled {
		t.Error("fingerprint should be stable")
	}
}
