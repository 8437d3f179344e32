// Package intent maps natural-language command text onto Chutes API
// operations using a declarative pattern table. It lives outside the
// request core on purpose: the core never inspects chat text.
package intent

import (
	"regexp"
	"strings"
)

// Operation identifies an API operation an utterance maps to.
type Operation string

// Matchable operations
const (
	OpListChutes   Operation = "list_chutes"
	OpGetChute     Operation = "get_chute"
	OpDeployChute  Operation = "deploy_chute"
	OpDeleteChute  Operation = "delete_chute"
	OpListCords    Operation = "list_cords"
	OpInvokeCord   Operation = "invoke_cord"
	OpListImages   Operation = "list_images"
	OpGetImage     Operation = "get_image"
	OpCheckBalance Operation = "check_balance"
)

// Match is a resolved utterance: the operation plus any captured
// parameters (resource ids, names).
type Match struct {
	Operation Operation
	Params    map[string]string
}

type rule struct {
	op       Operation
	patterns []*regexp.Regexp
}

// The table is ordered: more specific rules come before generic ones,
// so "list cords of chute X" is not swallowed by "list chutes".
var rules = []rule{
	{OpInvokeCord, compile(
		`(?:invoke|call|run)\s+(?:cord\s+)?(?P<cord>[\w-]+)\s+on\s+(?:chute\s+)?(?P<chute_id>[\w-]+)`,
	)},
	{OpListCords, compile(
		`(?:list|show|what)\s+(?:are\s+the\s+)?cords?\s+(?:of|on|for)\s+(?:chute\s+)?(?P<chute_id>[\w-]+)`,
	)},
	{OpDeployChute, compile(
		`deploy\s+(?:a\s+)?(?:new\s+)?chute\s+(?:named\s+|called\s+)?(?P<name>[\w-]+)`,
		`create\s+(?:a\s+)?chute\s+(?:named\s+|called\s+)?(?P<name>[\w-]+)`,
	)},
	{OpDeleteChute, compile(
		`(?:delete|remove|tear\s+down)\s+(?:the\s+)?chute\s+(?P<chute_id>[\w-]+)`,
	)},
	{OpGetChute, compile(
		`(?:get|show|describe|inspect)\s+(?:the\s+)?chute\s+(?P<chute_id>[\w-]+)`,
		`(?:status\s+of)\s+(?:the\s+)?chute\s+(?P<chute_id>[\w-]+)`,
	)},
	{OpListChutes, compile(
		`(?:list|show|what)\s+(?:are\s+)?(?:my\s+|all\s+)?chutes`,
		`chutes\s+(?:do\s+i\s+have|deployed)`,
	)},
	{OpGetImage, compile(
		`(?:get|show|describe)\s+(?:the\s+)?image\s+(?P<image_id>[\w-]+)`,
	)},
	{OpListImages, compile(
		`(?:list|show|what)\s+(?:are\s+)?(?:my\s+|all\s+|available\s+)?images`,
	)},
	{OpCheckBalance, compile(
		`(?:check|show|what.?s?)\s+(?:is\s+)?(?:my\s+)?(?:balance|deposit)`,
	)},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Parse resolves command text against the table. The second return is
// false when no rule matches.
func Parse(text string) (*Match, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	for _, r := range rules {
		for _, pattern := range r.patterns {
			m := pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			params := make(map[string]string)
			for i, name := range pattern.SubexpNames() {
				if name != "" && i < len(m) && m[i] != "" {
					params[name] = m[i]
				}
			}
			return &Match{Operation: r.op, Params: params}, true
		}
	}
	return nil, false
}
