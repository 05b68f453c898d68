package compliance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anyproto/any-sync/app"

	"github.com/gatherly/social-push-server/domain"
)

const CName = "push.compliance"

const (
	maxTitleChars   = 100
	maxBodyChars    = 500
	maxPayloadBytes = 4096
)

// prohibitedKeywords trip the spam filter regardless of casing.
var prohibitedKeywords = []string{
	"free money",
	"click here",
	"limited offer",
	"act now",
	"winner",
	"crypto giveaway",
}

var repeatedPunctuation = regexp.MustCompile(`[!?.]{4,}`)

func New() Validator {
	return new(validator)
}

type Result struct {
	Valid      bool
	Violations []string
}

// Validator is a pure content check: no state, no I/O. Only whitelisted
// social notification types pass, so the channel cannot be repurposed
// for marketing.
type Validator interface {
	Validate(typ domain.NotificationType, p domain.Payload) Result
	app.Component
}

type validator struct{}

func (v *validator) Init(a *app.App) (err error) {
	return
}

func (v *validator) Name() (name string) {
	return CName
}

func (v *validator) Validate(typ domain.NotificationType, p domain.Payload) Result {
	var violations []string
	if !typ.Social() {
		violations = append(violations, fmt.Sprintf("notification type %q is not permitted", typ))
	}
	if strings.TrimSpace(p.Title) == "" {
		violations = append(violations, "title is empty")
	} else if utf8.RuneCountInString(p.Title) > maxTitleChars {
		violations = append(violations, fmt.Sprintf("title exceeds %d characters", maxTitleChars))
	}
	if strings.TrimSpace(p.Body) == "" {
		violations = append(violations, "body is empty")
	} else if utf8.RuneCountInString(p.Body) > maxBodyChars {
		violations = append(violations, fmt.Sprintf("body exceeds %d characters", maxBodyChars))
	}
	for _, key := range []string{domain.DataKeyType, domain.DataKeyNavigationTarget} {
		if p.Data[key] == "" {
			violations = append(violations, fmt.Sprintf("missing data key %q", key))
		}
	}
	if serialized, err := json.Marshal(p); err != nil {
		violations = append(violations, "payload is not serializable")
	} else if len(serialized) > maxPayloadBytes {
		violations = append(violations, fmt.Sprintf("payload exceeds %d bytes", maxPayloadBytes))
	}
	violations = append(violations, spamViolations(p.Body)...)
	return Result{Valid: len(violations) == 0, Violations: violations}
}

func spamViolations(body string) (violations []string) {
	lower := strings.ToLower(body)
	for _, keyword := range prohibitedKeywords {
		if strings.Contains(lower, keyword) {
			violations = append(violations, fmt.Sprintf("prohibited keyword %q", keyword))
		}
	}
	var upper, letters int
	for _, r := range body {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters > 0 && upper*2 > letters {
		violations = append(violations, "body is mostly uppercase")
	}
	if repeatedPunctuation.MatchString(body) {
		violations = append(violations, "excessive repeated punctuation")
	}
	return
}
