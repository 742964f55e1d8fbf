package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("Bauantrag Stuttgart § 64 LBO")
	v2 := encodeSparseQuery("Bauantrag Stuttgart § 64 LBO")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatal("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryNoiseOnlyInput(t *testing.T) {
	v := encodeSparseQuery("___---!!! §§ ...")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestTokenizeLettersKeepsGermanRunes(t *testing.T) {
	tokens := tokenizeLetters("Geschäftsfähigkeit Minderjähriger (§106 BGB)")
	want := []string{"geschäftsfähigkeit", "minderjähriger", "106", "bgb"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenFrequencySaturates(t *testing.T) {
	once := encodeSparseQuery("bauantrag")
	many := encodeSparseQuery("bauantrag bauantrag bauantrag bauantrag")
	if len(once.Values) != 1 || len(many.Values) != 1 {
		t.Fatalf("unexpected vector sizes: %d, %d", len(once.Values), len(many.Values))
	}
	if many.Values[0] <= once.Values[0] {
		t.Fatalf("repeated term should weigh more: %f <= %f", many.Values[0], once.Values[0])
	}
	// BM25 saturation bounds the weight at k+1.
	if many.Values[0] >= queryBM25K+1.0 {
		t.Fatalf("weight %f exceeds saturation bound %f", many.Values[0], queryBM25K+1.0)
	}
}
