package models

import (
	"encoding/json"
	"testing"
)

func TestLinkUnmarshal(t *testing.T) {
	var links []Link
	input := `["https://www.alice-art.com/gallery", {"label": "Shop", "url": "https://shop.example.com"}, {"url": "https://bob.dev"}]`
	if err := json.Unmarshal([]byte(input), &links); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	if links[0].URL != "https://www.alice-art.com/gallery" || links[0].Label != "alice-art.com" {
		t.Errorf("unexpected string link: %+v", links[0])
	}
	if links[1].Label != "Shop" {
		t.Errorf("expected label Shop, got %s", links[1].Label)
	}
	if links[2].Label != "bob.dev" {
		t.Errorf("expected derived label bob.dev, got %s", links[2].Label)
	}
}

func TestLinkUnmarshalRejectsEmpty(t *testing.T) {
	for _, input := range []string{`""`, `{"label":"x"}`, `42`} {
		var l Link
		if err := json.Unmarshal([]byte(input), &l); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestConversationHelpers(t *testing.T) {
	a, b := OrderedPair("u2", "u1")
	if a != "u1" || b != "u2" {
		t.Fatalf("expected ordered pair, got %s %s", a, b)
	}
	c := Conversation{UserA: a, UserB: b, UnreadA: 1, UnreadB: 4}
	if c.Other("u1") != "u2" || c.Other("u2") != "u1" {
		t.Errorf("Other returned wrong participant")
	}
	if c.UnreadFor("u2") != 4 || c.UnreadColumn("u2") != "unread_b" {
		t.Errorf("unexpected unread mapping for u2")
	}
	if c.Has("u3") {
		t.Errorf("u3 is not a participant")
	}
}

func TestPublicUserHidesSecrets(t *testing.T) {
	u := &User{ID: "1", Email: "a@x.com", Username: "a", Password: "hash", Links: []Link{{Label: "x", URL: "https://x"}}}
	data, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	if _, ok := m["email"]; ok {
		t.Errorf("public view must not contain email")
	}
	if _, ok := m["password"]; ok {
		t.Errorf("public view must not contain password")
	}
	if m["username"] != "a" {
		t.Errorf("expected username a, got %v", m["username"])
	}
}
