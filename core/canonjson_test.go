package core

import "testing"

func TestCanonicalJSONSortsKeys(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2, "c": 3}
	got, err := canonicalJSON(v)
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSONEscapesNonASCII(t *testing.T) {
	got, err := canonicalJSON(map[string]any{"name": "café"})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	want := "{\"name\":\"caf\\u00e9\"}"
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSONEscapesAboveBMP(t *testing.T) {
	got, err := canonicalJSON(map[string]any{"emoji": "\U0001F600"})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	want := "{\"emoji\":\"\\ud83d\\ude00\"}"
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSONPreservesLargeIntegers(t *testing.T) {
	got, err := canonicalJSON(map[string]any{"ts": int64(1732999999999)})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	want := `{"ts":1732999999999}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSONCompactSeparators(t *testing.T) {
	got, err := canonicalJSON(map[string]any{"a": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	want := `{"a":[1,2,3]}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
