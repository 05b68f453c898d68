package domain

type Platform uint8

const (
	PlatformIOS Platform = iota
	PlatformAndroid
)

func (p Platform) String() string {
	switch p {
	case PlatformIOS:
		return "ios"
	case PlatformAndroid:
		return "android"
	}
	return "unknown"
}

type DeviceToken struct {
	Id         string   `bson:"_id"`
	UserId     string   `bson:"userId"`
	Token      string   `bson:"token"`
	Platform   Platform `bson:"platform"`
	Active     bool     `bson:"active"`
	LastUsedAt int64    `bson:"lastUsedAt"`
	Created    int64    `bson:"created"`
	Updated    int64    `bson:"updated"`
}
