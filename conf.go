package fbsmslib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IMQS/log"
	"gopkg.in/yaml.v3"
)

/*

Sample config (JSON, or the same keys in a .yaml/.yml file):

{
	"httpPort": 2012,
	"logfile": "stdout",
	"router": {
		"url": "http://fritz.box",
		"username": "sms",
		"password": "secret",
		"totpSecret": "JBSWY3DPEHPK3PXP",
		"language": "de",
		"region": "DE",
		"sendDelay": "5s",
		"sessionIdle": "19m"
	},
	"rateLimit": {
		"capacity": 10,
		"window": "1h"
	},
	"authentication": {
		"service": "serviceauth",
		"enabled": false
	}
}

*/

type Configuration struct {
	HTTPPort       int             `json:"httpPort" yaml:"httpPort"`
	Logfile        string          `json:"logfile" yaml:"logfile"`
	Router         ConfigRouter    `json:"router" yaml:"router"`
	RateLimit      ConfigRateLimit `json:"rateLimit" yaml:"rateLimit"`
	Authentication ConfigAuth      `json:"authentication" yaml:"authentication"`
}

type ConfigRouter struct {
	URL         string `json:"url" yaml:"url"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TOTPSecret  string `json:"totpSecret" yaml:"totpSecret"`
	Language    string `json:"language" yaml:"language"`
	Region      string `json:"region" yaml:"region"`
	SendDelay   string `json:"sendDelay" yaml:"sendDelay"`
	SessionIdle string `json:"sessionIdle" yaml:"sessionIdle"`
}

// ConfigRateLimit overrides the default quota. A nil Capacity keeps the
// default; 0 disables sending.
type ConfigRateLimit struct {
	Capacity *int  `json:"capacity" yaml:"capacity"`
	Window   string `json:"window" yaml:"window"`
}

type ConfigAuth struct {
	Service string `json:"service" yaml:"service"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// NewConfig reads the config file. Files ending in .yaml or .yml are read as
// YAML, everything else as JSON.
func (c *Configuration) NewConfig(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(c)
	default:
		err = json.NewDecoder(file).Decode(c)
	}
	if err != nil {
		return fmt.Errorf("error parsing config file %v: %w", filename, err)
	}
	return nil
}

// Credentials returns the router account of the config.
func (c *Configuration) Credentials() Credentials {
	return Credentials{
		URL:        c.Router.URL,
		Username:   c.Router.Username,
		Password:   c.Router.Password,
		TOTPSecret: c.Router.TOTPSecret,
	}
}

// Options converts the config into Client options.
func (c *Configuration) Options(logger *log.Logger) ([]Option, error) {
	opts := []Option{}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	if c.Router.Language != "" {
		opts = append(opts, WithLanguage(c.Router.Language))
	}
	if c.Router.Region != "" {
		opts = append(opts, WithRegion(c.Router.Region))
	}
	if c.Router.SendDelay != "" {
		d, err := time.ParseDuration(c.Router.SendDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid router.sendDelay: %w", err)
		}
		opts = append(opts, WithSendDelay(d))
	}
	if c.Router.SessionIdle != "" {
		d, err := time.ParseDuration(c.Router.SessionIdle)
		if err != nil {
			return nil, fmt.Errorf("invalid router.sessionIdle: %w", err)
		}
		opts = append(opts, WithSessionIdle(d))
	}

	if c.RateLimit.Capacity != nil || c.RateLimit.Window != "" {
		r := DefaultRateLimit()
		if c.RateLimit.Capacity != nil {
			r.Capacity = *c.RateLimit.Capacity
		}
		if c.RateLimit.Window != "" {
			d, err := time.ParseDuration(c.RateLimit.Window)
			if err != nil {
				return nil, fmt.Errorf("invalid rateLimit.window: %w", err)
			}
			r.Window = d
		}
		opts = append(opts, WithRateLimit(r))
	}
	return opts, nil
}

// NewClient builds a Client from the config.
func (c *Configuration) NewClient(logger *log.Logger) (*Client, error) {
	opts, err := c.Options(logger)
	if err != nil {
		return nil, err
	}
	return New(c.Credentials(), opts...)
}
