package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const credentialsFile = "creds.json"

// LocalFactory builds loopback clients for development and demos: no
// network, credentials are a marker file, and pairing always succeeds.
// The first Initialize for an identity reports ErrPairingRequired; after
// RequestPairingCode the client records credentials and signals
// authenticated and ready, so the full session lifecycle can be exercised
// without a messaging account.
func LocalFactory(identity, credentialsDir string, h Handlers) (Client, error) {
	return &localClient{
		identity: identity,
		dir:      credentialsDir,
		handlers: h,
	}, nil
}

type localClient struct {
	identity string
	dir      string
	handlers Handlers

	mu        sync.Mutex
	destroyed bool
}

func (c *localClient) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(c.dir, credentialsFile)); err != nil {
		if os.IsNotExist(err) {
			if c.handlers.PairingRequired != nil {
				c.handlers.PairingRequired()
			}
			return ErrPairingRequired
		}
		return fmt.Errorf("read local credentials: %w", err)
	}

	if c.handlers.Authenticated != nil {
		c.handlers.Authenticated()
	}
	if c.handlers.Ready != nil {
		c.handlers.Ready()
	}
	return nil
}

func (c *localClient) RequestPairingCode(ctx context.Context, identity string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	code := strings.ToUpper(uuid.NewString()[:8])

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create credentials dir: %w", err)
	}
	payload := fmt.Sprintf("{\"identity\":%q,\"code\":%q}\n", identity, code)
	if err := os.WriteFile(filepath.Join(c.dir, credentialsFile), []byte(payload), 0o600); err != nil {
		return "", fmt.Errorf("write local credentials: %w", err)
	}

	// Loopback pairing is accepted immediately.
	if c.handlers.Authenticated != nil {
		c.handlers.Authenticated()
	}
	if c.handlers.Ready != nil {
		c.handlers.Ready()
	}

	return code, nil
}

func (c *localClient) SendMessage(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return fmt.Errorf("local client for %s is destroyed", c.identity)
	}
	return nil
}

func (c *localClient) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	return nil
}
