package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"docbatch/internal/config"
	"docbatch/internal/ipc"
	"docbatch/internal/queue"
	"docbatch/internal/queueaccess"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	socket   string
	config   string
	logLevel string
}

// commandContext carries flag values and the lazily loaded configuration.
type commandContext struct {
	opts       globalOptions
	loadConfig func() (*config.Config, error)
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.loadConfig = sync.OnceValues(c.readConfig)
	return c
}

func (c *commandContext) readConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPath())
	if err != nil {
		return nil, err
	}
	if socket := strings.TrimSpace(c.opts.socket); socket != "" {
		cfg.Paths.SocketPath = socket
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

func (c *commandContext) configPath() string {
	return strings.TrimSpace(c.opts.config)
}

func (c *commandContext) logLevel() string {
	return strings.TrimSpace(c.opts.logLevel)
}

// socketPath prefers --socket, then the configured socket.
func (c *commandContext) socketPath() string {
	if socket := strings.TrimSpace(c.opts.socket); socket != "" {
		return socket
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Paths.SocketPath
	}
	return ""
}

// withQueue runs fn against the daemon when it is reachable, otherwise
// against the store.
func (c *commandContext) withQueue(fn func(queueaccess.Access) error) error {
	return c.withSession(func(session queueaccess.Session) error {
		return fn(session.Access)
	})
}

func (c *commandContext) withContent(fn func(queueaccess.ContentAccess) error) error {
	return c.withSession(func(session queueaccess.Session) error {
		return fn(session.Content)
	})
}

func (c *commandContext) withSession(fn func(queueaccess.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(c.socketPath()) },
		func() (*queue.Store, error) { return queue.Open(cfg) },
	)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

// wrapDialError turns socket errors into a next step for the operator.
func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `docbatch start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
