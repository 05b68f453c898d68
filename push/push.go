//go:generate mockgen -destination mock_push/mock_push.go github.com/gatherly/social-push-server/push Push

package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/gatherly/social-push-server/audit"
	"github.com/gatherly/social-push-server/compliance"
	"github.com/gatherly/social-push-server/dispatch"
	"github.com/gatherly/social-push-server/domain"
	"github.com/gatherly/social-push-server/metric"
	"github.com/gatherly/social-push-server/preferences"
	"github.com/gatherly/social-push-server/ratelimit"
	"github.com/gatherly/social-push-server/tokencache"
)

const CName = "push"

var log = logger.NewNamed(CName)

func New() Push {
	return new(push)
}

// Push is the single entry point of the dispatch subsystem.
//
// DispatchSocial never returns an error: the social service that fires a
// notification must not fail because delivery did, so every dispatch-path
// failure is folded into the AggregateResult and the audit trail.
type Push interface {
	DispatchSocial(ctx context.Context, userId string, typ domain.NotificationType, payload domain.Payload) domain.AggregateResult
	RegisterToken(ctx context.Context, userId, token string, platform domain.Platform) error
	UnregisterToken(ctx context.Context, token string) error
	app.Component
}

type push struct {
	tokens     tokencache.TokenCache
	limiter    ratelimit.RateLimiter
	validator  compliance.Validator
	dispatcher dispatch.Dispatcher
	auditLog   audit.Sink
	prefs      preferences.Preferences
	metrics    metrics
}

func (p *push) Init(a *app.App) (err error) {
	p.tokens = a.MustComponent(tokencache.CName).(tokencache.TokenCache)
	p.limiter = a.MustComponent(ratelimit.CName).(ratelimit.RateLimiter)
	p.validator = a.MustComponent(compliance.CName).(compliance.Validator)
	p.dispatcher = a.MustComponent(dispatch.CName).(dispatch.Dispatcher)
	p.auditLog = a.MustComponent(audit.CName).(audit.Sink)
	p.prefs = a.MustComponent(preferences.CName).(preferences.Preferences)
	if m, _ := a.Component(metric.CName).(metric.Metric); m != nil {
		registerMetrics(m.Registry(), p)
	}
	return
}

func (p *push) Name() (name string) {
	return CName
}

func (p *push) DispatchSocial(ctx context.Context, userId string, typ domain.NotificationType, payload domain.Payload) (result domain.AggregateResult) {
	st := time.Now()
	defer func() {
		log.Debug("dispatchSocial",
			zap.String("userId", userId),
			zap.String("type", string(typ)),
			zap.Int("sent", result.SentCount),
			zap.Int("failed", result.FailedCount),
			zap.Duration("dur", time.Since(st)))
	}()

	enabled, err := p.prefs.IsNotificationTypeEnabled(ctx, userId, typ)
	if err != nil {
		// deliver-over-silence: an unwanted push beats a silently
		// missed one when the preference collaborator is down
		log.Warn("degraded preference check, defaulting to allow",
			zap.String("userId", userId), zap.Error(err))
		enabled = true
	}
	if !enabled {
		entry := audit.NewEntry(userId, typ)
		entry.Success = true
		entry.Metadata = map[string]string{"skipped": "preference_disabled"}
		p.record(ctx, entry)
		p.metrics.count(outcomeSkipped)
		return
	}

	if res := p.validator.Validate(typ, payload); !res.Valid {
		entry := audit.NewEntry(userId, typ)
		entry.Metadata = map[string]string{"violations": strings.Join(res.Violations, "; ")}
		p.record(ctx, entry)
		p.metrics.count(outcomeRejected)
		return
	}

	decision, err := p.limiter.CheckAndRecord(ctx, userId)
	if err != nil {
		log.Error("rate limit check failed", zap.String("userId", userId), zap.Error(err))
		entry := audit.NewEntry(userId, typ)
		entry.Metadata = map[string]string{"error": "rate limit check failed"}
		p.record(ctx, entry)
		p.metrics.count(outcomeFailed)
		return
	}
	if !decision.Allowed {
		entry := audit.NewEntry(userId, typ)
		entry.Metadata = map[string]string{
			"reason":       decision.Reason,
			"retryAfterMs": fmt.Sprint(decision.RetryAfter.Milliseconds()),
		}
		p.record(ctx, entry)
		p.metrics.count(outcomeRejected)
		return
	}

	tokens, err := p.tokens.GetActiveTokens(ctx, userId)
	if err != nil {
		log.Error("token resolution failed", zap.String("userId", userId), zap.Error(err))
		entry := audit.NewEntry(userId, typ)
		entry.Metadata = map[string]string{"error": "token resolution failed"}
		p.record(ctx, entry)
		p.metrics.count(outcomeFailed)
		return
	}
	if len(tokens) == 0 {
		// a user with no registered devices is a valid no-op
		entry := audit.NewEntry(userId, typ)
		entry.Success = true
		p.record(ctx, entry)
		p.metrics.count(outcomeNoDevices)
		return
	}

	results := p.dispatcher.SendAll(ctx, tokens, payload)
	for _, res := range results {
		if res.Success {
			result.SentCount++
		} else {
			result.FailedCount++
			result.Errors = append(result.Errors, res)
		}
	}

	entry := audit.NewEntry(userId, typ)
	entry.RecipientCount = len(tokens)
	entry.DeliveredCount = result.SentCount
	entry.FailedCount = result.FailedCount
	// reaching some of the user's devices counts as success
	entry.Success = result.SentCount > 0
	p.record(ctx, entry)
	if entry.Success {
		p.metrics.count(outcomeDelivered)
	} else {
		p.metrics.count(outcomeFailed)
	}
	return
}

func (p *push) RegisterToken(ctx context.Context, userId, token string, platform domain.Platform) error {
	return p.tokens.Store(ctx, userId, token, platform)
}

func (p *push) UnregisterToken(ctx context.Context, token string) error {
	return p.tokens.Remove(ctx, token)
}

func (p *push) record(ctx context.Context, entry domain.AuditEntry) {
	if err := p.auditLog.Record(ctx, entry); err != nil {
		log.Error("audit record failed", zap.String("userId", entry.UserId), zap.Error(err))
	}
}
