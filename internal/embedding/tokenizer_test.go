package embedding

import (
	"reflect"
	"testing"
)

func TestHashTokenizer_Tokenize(t *testing.T) {
	tok := &HashTokenizer{}
	ids, attn, types := tok.Tokenize("Hello, world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("expected CLS %d, got %d", clsToken, ids[0])
	}
	if ids[3] != sepToken {
		t.Errorf("expected SEP at 3, got %v", ids[:4])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask: %v", attn)
	}
}

func TestHashTokenizer_truncates(t *testing.T) {
	tok := &HashTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h", 4)
	if ids[3] != sepToken {
		t.Errorf("last token should be SEP, got %v", ids)
	}
}

func TestWords(t *testing.T) {
	got := Words("  Section 138, N.I. Act  ")
	want := []string{"section", "138", "n", "i", "act"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
	if len(Words("")) != 0 {
		t.Error("empty string should produce no words")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should usually hash differently")
	}
	if HashString("zzzzzzzzzzzzzzzzzzzzzzzz") < 0 {
		t.Error("hash should be non-negative")
	}
}
