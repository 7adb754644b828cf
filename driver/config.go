package driver

import (
	"fmt"
	"strings"

	"github.com/datazip-inc/rxmongo/utils"
	"github.com/datazip-inc/rxmongo/utils/logger"
)

const (
	defaultBatchSize  = 10000
	defaultRetryCount = 3
)

type Config struct {
	// List of MongoDB hosts (with port)
	Hosts []string `json:"hosts" validate:"required,min=1"`

	// Target database
	Database string `json:"database" validate:"required"`

	// Authentication database
	AuthDB string `json:"authdb"`

	// MongoDB username
	Username string `json:"username"`

	// MongoDB password
	Password string `json:"password"`

	// Replica set name
	ReplicaSet string `json:"replica_set"`

	// Read preference (e.g., primary, secondaryPreferred)
	ReadPreference string `json:"read_preference"`

	// Whether to use DNS SRV
	Srv bool `json:"srv"`

	// Server batch size hint for cursor-backed reads
	BatchSize int `json:"batch_size"`

	// Maximum size of the driver connection pool
	MaxPoolSize int `json:"max_pool_size"`

	// Number of connect retries before failure
	RetryCount int `json:"backoff_retry_count"`
}

func (c *Config) URI() string {
	connectionPrefix := "mongodb"
	if c.Srv {
		connectionPrefix = "mongodb+srv"
	}

	options := ""
	if c.AuthDB != "" {
		options = fmt.Sprintf("?authSource=%s", c.AuthDB)
	}
	if c.ReplicaSet != "" {
		// configurations for a replica set
		if c.ReadPreference == "" {
			c.ReadPreference = "secondaryPreferred"
		}
		separator := utils.Ternary(options == "", "?", "&").(string)
		options = fmt.Sprintf("%s%sreplicaSet=%s&readPreference=%s", options, separator, c.ReplicaSet, c.ReadPreference)
	}

	auth := ""
	if c.Username != "" {
		auth = utils.Ternary(c.Password != "", c.Username+":"+c.Password+"@", c.Username+"@").(string)
	}

	return fmt.Sprintf(
		"%s://%s%s/%s",
		connectionPrefix, auth, strings.Join(c.Hosts, ","), options,
	)
}

func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		logger.Debugf("setting batch size to default[%d]", defaultBatchSize)
		c.BatchSize = defaultBatchSize
	}
	if c.RetryCount <= 0 {
		c.RetryCount = defaultRetryCount
	}

	return utils.Validate(c)
}
