//go:generate mockgen -destination mock_preferences/mock_preferences.go github.com/gatherly/social-push-server/preferences Preferences

package preferences

import (
	"context"

	"github.com/anyproto/any-sync/app"

	"github.com/gatherly/social-push-server/domain"
)

const CName = "push.preferences"

// Preferences is the user-settings collaborator. The orchestrator asks it
// before dispatching; this service does not own preference storage.
type Preferences interface {
	IsNotificationTypeEnabled(ctx context.Context, userId string, typ domain.NotificationType) (bool, error)
	app.Component
}

// NewAllowAll returns the default collaborator: every social type enabled.
// Deployments wire the social service's checker in its place.
func NewAllowAll() Preferences {
	return new(allowAll)
}

type allowAll struct{}

func (p *allowAll) Init(a *app.App) (err error) {
	return
}

func (p *allowAll) Name() (name string) {
	return CName
}

func (p *allowAll) IsNotificationTypeEnabled(ctx context.Context, userId string, typ domain.NotificationType) (bool, error) {
	return true, nil
}
