package utils

import (
	"strings"
	"testing"
	"time"
)

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("New piece! #Krafink #ceramics and #krafink again, not a&#39;s tag")
	want := []string{"krafink", "ceramics"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

func TestExtractMentions(t *testing.T) {
	got := ExtractMentions("thanks @alice_painter and @Bob_W, mail me at x@example.com @alice_painter")
	if len(got) != 2 || got[0] != "alice_painter" || got[1] != "Bob_W" {
		t.Errorf("unexpected mentions: %v", got)
	}
}

func TestSanitizeText(t *testing.T) {
	got := SanitizeText(`<script>alert(1)</script>Hello <b>world</b> & friends`)
	if got != "Hello world & friends" {
		t.Errorf("unexpected sanitized text: %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("**bold** ![img](https://example.com/a.png)\n<script>x</script>")
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("expected bold markup, got %s", out)
	}
	if !strings.Contains(out, `loading="lazy"`) {
		t.Errorf("expected lazy image, got %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("script must be removed, got %s", out)
	}
}

func TestTTLCacheIncr(t *testing.T) {
	c, err := NewTTLCache[int](10)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	c.now = func() time.Time { return now }

	add := func(v int) int { return v + 1 }
	c.Incr("k", time.Minute, add)
	if v := c.Incr("k", time.Minute, add); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to be expired")
	}
	if v := c.Incr("k", time.Minute, add); v != 1 {
		t.Errorf("expected counter reset to 1, got %d", v)
	}
}
