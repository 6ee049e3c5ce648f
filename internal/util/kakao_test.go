package util

import (
	"strings"
	"testing"
)

func TestFoldLongText(t *testing.T) {
	short := "a\nb"
	if got := FoldLongText(short, 5); got != short {
		t.Fatalf("short text must stay as is: %q", got)
	}
	long := "Title\nrow1\nrow2\nrow3\nrow4"
	got := FoldLongText(long, 5)
	if !strings.HasPrefix(got, "Title"+KakaoZeroWidthSpace) {
		t.Fatalf("preview line missing: %q", got[:20])
	}
	if !strings.HasSuffix(got, "\nrow1\nrow2\nrow3\nrow4") {
		t.Fatalf("body lost")
	}
	if n := strings.Count(got, KakaoZeroWidthSpace); n != KakaoSeeMorePadding {
		t.Fatalf("padding = %d", n)
	}
}

func TestHumanizeMentions(t *testing.T) {
	names := map[string]string{"1": "Alice"}
	lookup := func(id string) (string, bool) { n, ok := names[id]; return n, ok }
	got := HumanizeMentions("<@1> vs <@!2> and <@x>", lookup)
	if got != "@Alice vs @2 and <@x>" {
		t.Fatalf("HumanizeMentions = %q", got)
	}
}
