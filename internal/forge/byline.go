package forge

import (
	"regexp"
	"strings"
)

// bylinePrefix format: "^[agent-id]\n\n" at the start of the body.
// Grounded on spec §4.4 "Byline discipline": generated bodies carry an
// attribution prefix identifying the authoring agent, because the forge
// often reports a shared service account as the API-calling identity, not
// the persona that actually generated the content.
var bylineRe = regexp.MustCompile(`^\[([a-z0-9][a-z0-9-]*)\]\n\n`)

// stampBylinePrefix prepends agentID's byline to body. The forge client
// must never rewrite bodies beyond this prefix (spec §4.4).
func stampBylinePrefix(agentID, body string) string {
	return "[" + agentID + "]\n\n" + body
}

// parseByline recovers the authoring agent id from a byline-stamped body,
// returning ("", body) unchanged if no byline is present (e.g. a comment
// from a human or an agent created before this convention).
func parseByline(body string) (agentID, rest string) {
	m := bylineRe.FindStringSubmatchIndex(body)
	if m == nil {
		return "", body
	}
	agentID = body[m[2]:m[3]]
	rest = body[m[1]:]
	return agentID, rest
}

// stripBylinePrefix removes a byline if present, returning the bare body.
func stripBylinePrefix(body string) string {
	_, rest := parseByline(body)
	return strings.TrimPrefix(rest, "")
}
