package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/client"
	"scribe/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) serverAddress() string {
	if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
		return strings.TrimSpace(*c.serverFlag)
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Server.Bind
}

func (c *commandContext) newClient() (*client.Client, error) {
	var token string
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		token = cfg.Server.Token
	}
	address := c.serverAddress()
	daemonClient, err := client.New(address, token)
	if err != nil {
		return nil, fmt.Errorf("resolve daemon address %q: %w", address, err)
	}
	if daemonClient == nil {
		return nil, fmt.Errorf("no daemon address configured; set server.bind or pass --server")
	}
	return daemonClient, nil
}

func wrapClientError(err error, daemonClient *client.Client) error {
	if err == nil {
		return nil
	}
	if client.IsAPIUnavailable(err) {
		return fmt.Errorf("connect to daemon at %s: %w; start it with `scribe serve`", daemonClient.BaseURL(), err)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
