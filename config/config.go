package config

import (
	"os"

	"github.com/anyproto/any-sync/app"
	"gopkg.in/yaml.v3"

	"github.com/gatherly/social-push-server/audit"
	"github.com/gatherly/social-push-server/db"
	"github.com/gatherly/social-push-server/dispatch"
	"github.com/gatherly/social-push-server/dispatch/provider/fcm"
	"github.com/gatherly/social-push-server/metric"
	"github.com/gatherly/social-push-server/ratelimit"
	"github.com/gatherly/social-push-server/redisprovider"
	"github.com/gatherly/social-push-server/sweeper"
	"github.com/gatherly/social-push-server/tokencache"
)

const CName = "config"

func NewFromFile(path string) (c *Config, err error) {
	c = &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	c.setDefaults()
	return
}

type Config struct {
	Mongo     db.Mongo             `yaml:"mongo"`
	Redis     redisprovider.Config `yaml:"redis"`
	FCM       fcm.Config           `yaml:"fcm"`
	Limits    ratelimit.Config     `yaml:"limits"`
	Dispatch  dispatch.Config      `yaml:"dispatch"`
	Cache     tokencache.Config    `yaml:"cache"`
	Audit     audit.Config         `yaml:"audit"`
	Sweeper   sweeper.Config       `yaml:"sweeper"`
	Metric    metric.Config        `yaml:"metric"`
	QueueName string               `yaml:"queueName"`
}

func (c *Config) setDefaults() {
	c.Limits = c.Limits.WithDefaults()
	c.Dispatch = c.Dispatch.WithDefaults()
	c.Cache = c.Cache.WithDefaults()
	c.Audit = c.Audit.WithDefaults()
	c.Sweeper = c.Sweeper.WithDefaults()
	if c.QueueName == "" {
		c.QueueName = "social-push"
	}
}

func (c *Config) Init(a *app.App) (err error) {
	return nil
}

func (c *Config) Name() (name string) {
	return CName
}

func (c *Config) GetMongo() db.Mongo {
	return c.Mongo
}

func (c *Config) GetRedis() redisprovider.Config {
	return c.Redis
}

func (c *Config) GetFCM() fcm.Config {
	return c.FCM
}

func (c *Config) GetLimits() ratelimit.Config {
	return c.Limits
}

func (c *Config) GetDispatch() dispatch.Config {
	return c.Dispatch
}

func (c *Config) GetCache() tokencache.Config {
	return c.Cache
}

func (c *Config) GetAudit() audit.Config {
	return c.Audit
}

func (c *Config) GetSweeper() sweeper.Config {
	return c.Sweeper
}

func (c *Config) GetMetric() metric.Config {
	return c.Metric
}

func (c *Config) GetQueueName() string {
	return c.QueueName
}
