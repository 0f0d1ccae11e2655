package pointer

import (
	"reflect"
	"testing"
)

func TestParseSplitsAndUnescapes(t *testing.T) {
	got, err := Parse("/a~1b/c~0d/2")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/b", "c~d", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseEmptyPointerIsWholeDocument(t *testing.T) {
	got, err := Parse("")
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v; want empty, nil err", got, err)
	}
}

func TestParseRejectsMissingLeadingSlash(t *testing.T) {
	if _, err := Parse("a/b"); err == nil {
		t.Error("expected error for pointer without leading slash")
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, raw := range []string{"a/b", "c~d", "plain", "~/~"} {
		if got := Unescape(Escape(raw)); got != raw {
			t.Errorf("round trip %q -> %q", raw, got)
		}
	}
}

func TestJoinRendersEscapedTokens(t *testing.T) {
	got := Join([]string{"a/b", "c~d"})
	want := "/a~1b/c~0d"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseArrayIndex(t *testing.T) {
	cases := []struct {
		token string
		want  ArrayIndex
		ok    bool
	}{
		{"-", ArrayIndex{End: true}, true},
		{"0", ArrayIndex{Index: 0}, true},
		{"42", ArrayIndex{Index: 42}, true},
		{"01", ArrayIndex{}, false},
		{"-1", ArrayIndex{}, false},
		{"+1", ArrayIndex{}, false},
		{"", ArrayIndex{}, false},
		{"abc", ArrayIndex{}, false},
	}
	for _, c := range cases {
		got, ok := ParseArrayIndex(c.token)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseArrayIndex(%q) = %v, %v; want %v, %v", c.token, got, ok, c.want, c.ok)
		}
	}
}
