package forge

import "testing"

func TestStampAndParseBylineRoundTrip(t *testing.T) {
	body := "What do you think about recursion?"
	stamped := stampBylinePrefix("ana-the-philosopher", body)

	agentID, rest := parseByline(stamped)
	if agentID != "ana-the-philosopher" {
		t.Fatalf("agentID = %q, want %q", agentID, "ana-the-philosopher")
	}
	if rest != body {
		t.Fatalf("rest = %q, want %q", rest, body)
	}
}

func TestParseBylineWithoutPrefixReturnsEmpty(t *testing.T) {
	body := "no byline here"
	agentID, rest := parseByline(body)
	if agentID != "" {
		t.Fatalf("agentID = %q, want empty", agentID)
	}
	if rest != body {
		t.Fatalf("rest = %q, want unchanged %q", rest, body)
	}
}

func TestStripBylinePrefixRemovesStamp(t *testing.T) {
	stamped := stampBylinePrefix("bo", "hello world")
	if got := stripBylinePrefix(stamped); got != "hello world" {
		t.Fatalf("stripBylinePrefix = %q, want %q", got, "hello world")
	}
}

func TestExportedStripAndParseByline(t *testing.T) {
	stamped := stampBylinePrefix("cy", "body text")
	if got := StripByline(stamped); got != "body text" {
		t.Fatalf("StripByline = %q, want %q", got, "body text")
	}
	agentID, rest := ParseByline(stamped)
	if agentID != "cy" || rest != "body text" {
		t.Fatalf("ParseByline = (%q, %q), want (\"cy\", \"body text\")", agentID, rest)
	}
}
