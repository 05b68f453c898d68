package fcm

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/gatherly/social-push-server/dispatch"
	"github.com/gatherly/social-push-server/domain"
)

const CName = "push.provider.fcm"

var log = logger.NewNamed(CName)

func New() FCM {
	return new(fcm)
}

type FCM interface {
	app.Component
}

type fcm struct {
}

func (f *fcm) Init(a *app.App) (err error) {
	d := a.MustComponent(dispatch.CName).(dispatch.Dispatcher)
	conf := a.MustComponent("config").(configSource).GetFCM()

	android, err := newGateway(conf.CredentialsFile.Android)
	if err != nil {
		return err
	}
	d.RegisterGateway(domain.PlatformAndroid, android)

	ios, err := newGateway(conf.CredentialsFile.IOS)
	if err != nil {
		return err
	}
	d.RegisterGateway(domain.PlatformIOS, ios)
	return
}

func (f *fcm) Name() (name string) {
	return CName
}

func newGateway(credentialsFile string) (dispatch.Gateway, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	fcmApp, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := fcmApp.Messaging(context.Background())
	if err != nil {
		return nil, err
	}
	return &fcmGateway{client: client}, nil
}

type fcmGateway struct {
	client *messaging.Client
}

func (g *fcmGateway) Send(ctx context.Context, token string, platform domain.Platform, payload domain.Payload) error {
	_, err := g.client.Send(ctx, buildFcmMessage(token, payload))
	if err == nil {
		return nil
	}
	category := categorize(err)
	log.Warn("fcm send error",
		zap.String("platform", platform.String()),
		zap.String("category", string(category)),
		zap.Error(err))
	return domain.NewDispatchError(category, err)
}

func buildFcmMessage(token string, payload domain.Payload) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    payload.Title,
			Body:     payload.Body,
			ImageURL: payload.ImageURL,
		},
		Data: payload.Data,
	}
}

// categorize maps the fcm error surface onto our categories. Unregistered
// means the installation is gone for good; invalid argument on a send is
// almost always a malformed token.
func categorize(err error) domain.ErrorCategory {
	switch {
	case messaging.IsUnregistered(err):
		return domain.CategoryExpiredToken
	case messaging.IsInvalidArgument(err):
		return domain.CategoryInvalidToken
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return domain.CategoryNetworkError
	case messaging.IsQuotaExceeded(err):
		return domain.CategoryRateLimited
	case messaging.IsSenderIDMismatch(err):
		return domain.CategoryPermissionDenied
	case messaging.IsThirdPartyAuthError(err):
		return domain.CategoryConfigError
	}
	return domain.CategoryUnknown
}
