package moderation

import "testing"

func TestFilter_CleanContent(t *testing.T) {
	f := NewFilter()

	cases := []string{
		"hey, how was your day?",
		"want to grab coffee this weekend?",
		"I love hiking and live music",
	}
	for _, content := range cases {
		if res := f.Check(content); res.Blocked {
			t.Errorf("Check(%q) should be clean, blocked with reason=%s term=%q", content, res.Reason, res.Term)
		}
	}
}

func TestFilter_ProhibitedTerms(t *testing.T) {
	f := NewFilter()

	cases := []string{
		"just venmo me $50",
		"VENMO ME please", // case-insensitive
		"find me on onlyfans",
		"can you send money for my flight",
	}
	for _, content := range cases {
		res := f.Check(content)
		if !res.Blocked {
			t.Errorf("Check(%q) should be blocked", content)
			continue
		}
		if res.Reason != "prohibited_term" {
			t.Errorf("Check(%q) reason = %q, want prohibited_term", content, res.Reason)
		}
	}
}

func TestFilter_ContactInfo(t *testing.T) {
	f := NewFilter()

	cases := []struct {
		content string
		term    string
	}{
		{"call me at +1 555 123 4567 tonight", "phone_number"},
		{"check out https://example.com/profile", "url"},
		{"my site is www.example.com", "url"},
	}
	for _, tc := range cases {
		res := f.Check(tc.content)
		if !res.Blocked {
			t.Errorf("Check(%q) should be blocked", tc.content)
			continue
		}
		if res.Reason != "contact_info" {
			t.Errorf("Check(%q) reason = %q, want contact_info", tc.content, res.Reason)
		}
		if res.Term != tc.term {
			t.Errorf("Check(%q) term = %q, want %q", tc.content, res.Term, tc.term)
		}
	}
}

func TestFilter_CustomTerms(t *testing.T) {
	f := NewFilterWithTerms([]string{"bitcoin"})

	if res := f.Check("invest in Bitcoin now"); !res.Blocked {
		t.Error("custom term should block")
	}
	// Default terms are not included when a custom list is supplied.
	if res := f.Check("venmo me"); res.Blocked {
		t.Error("default terms should not apply with a custom list")
	}
}
