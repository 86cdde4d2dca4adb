package main

import (
	"strings"

	"gantry/internal/config"
)

// commandContext carries flag values and the lazily loaded configuration
// shared by every subcommand.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	cfg     *config.Config
	cfgPath string
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolved
	return cfg, nil
}

// apiAddress resolves the daemon API address from the --api flag or the
// configuration file.
func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) client() (*apiClient, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	return newAPIClient(addr), nil
}
