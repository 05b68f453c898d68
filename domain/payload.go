package domain

type NotificationType string

const (
	TypeFriendRequest  NotificationType = "friend_request"
	TypeFriendAccepted NotificationType = "friend_accepted"
	TypeVenueShare     NotificationType = "venue_share"
	TypeVenueCheckin   NotificationType = "venue_checkin"
	TypeEventInvite    NotificationType = "event_invite"
)

// socialTypes is the whitelist of types allowed through this channel.
// Anything else is rejected so the push pipeline cannot be repurposed
// for marketing traffic.
var socialTypes = map[NotificationType]struct{}{
	TypeFriendRequest:  {},
	TypeFriendAccepted: {},
	TypeVenueShare:     {},
	TypeVenueCheckin:   {},
	TypeEventInvite:    {},
}

func (t NotificationType) Social() bool {
	_, ok := socialTypes[t]
	return ok
}

// Payload data keys every notification must carry so the client can
// route the tap.
const (
	DataKeyType             = "type"
	DataKeyNavigationTarget = "navigationTarget"
)

type Payload struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data"`
	ImageURL string            `json:"imageUrl,omitempty"`
}
