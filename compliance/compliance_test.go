package compliance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatherly/social-push-server/domain"
)

func validPayload() domain.Payload {
	return domain.Payload{
		Title: "New friend request",
		Body:  "Alex wants to be your friend",
		Data: map[string]string{
			domain.DataKeyType:             string(domain.TypeFriendRequest),
			domain.DataKeyNavigationTarget: "/friends/alex",
		},
	}
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	res := v.Validate(domain.TypeFriendRequest, validPayload())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Violations)
}

func TestValidator_Violations(t *testing.T) {
	v := New()
	tests := []struct {
		name      string
		typ       domain.NotificationType
		mutate    func(p *domain.Payload)
		violation string
	}{
		{
			name:      "non-social type",
			typ:       "marketing_blast",
			mutate:    func(p *domain.Payload) {},
			violation: `notification type "marketing_blast" is not permitted`,
		},
		{
			name:      "empty title",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { p.Title = "   " },
			violation: "title is empty",
		},
		{
			name:      "oversized title",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { p.Title = strings.Repeat("a", 150) },
			violation: "title exceeds 100 characters",
		},
		{
			name:      "oversized body",
			typ:       domain.TypeVenueShare,
			mutate:    func(p *domain.Payload) { p.Body = strings.Repeat("b", 501) },
			violation: "body exceeds 500 characters",
		},
		{
			name:      "missing navigation target",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { delete(p.Data, domain.DataKeyNavigationTarget) },
			violation: `missing data key "navigationTarget"`,
		},
		{
			name:      "prohibited keyword",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { p.Body = "Click Here to meet Alex" },
			violation: `prohibited keyword "click here"`,
		},
		{
			name:      "shouting",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { p.Body = "ALEX WANTS TO BE YOUR FRIEND" },
			violation: "body is mostly uppercase",
		},
		{
			name:      "repeated punctuation",
			typ:       domain.TypeFriendRequest,
			mutate:    func(p *domain.Payload) { p.Body = "new friend!!!!" },
			violation: "excessive repeated punctuation",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(&p)
			res := v.Validate(tc.typ, p)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Violations, tc.violation)
		})
	}
}

func TestValidator_OversizedSerializedPayload(t *testing.T) {
	v := New()
	p := validPayload()
	p.Data["blob"] = strings.Repeat("x", 5000)
	res := v.Validate(domain.TypeFriendRequest, p)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Violations, "payload exceeds 4096 bytes")
}

func TestValidator_IsPure(t *testing.T) {
	v := New()
	p := validPayload()
	_ = v.Validate(domain.TypeFriendRequest, p)
	assert.Equal(t, validPayload(), p)
}
