package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gridvoice/cli/internal/config"
	"github.com/gridvoice/cli/internal/identity"
	"github.com/gridvoice/cli/internal/match"
	"github.com/gridvoice/cli/internal/session"
	"github.com/gridvoice/cli/internal/ui"
)

// ClientContext bundles the wired layers every command works with.
type ClientContext struct {
	Config  *config.Config
	Store   identity.Store
	Manager *session.Manager
	Match   *match.Channel
}

func NewClientContext(opts config.Options) (*ClientContext, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, session.NewError("load config", err)
	}

	store, err := identity.NewFileStore()
	if err != nil {
		return nil, session.NewError("open identity store", err)
	}

	mgr := session.NewManager(session.Options{
		Auth:   session.NewHTTPAuthClient(cfg.AuthURL()),
		Store:  store,
		Dialer: session.WSDialer{},
		Policy: session.Policy{
			Base:        cfg.ReconnectBase,
			Cap:         cfg.ReconnectCap,
			MaxAttempts: cfg.MaxAttempts,
		},
		URL:           cfg.WebSocketURL,
		ReadyDelay:    cfg.ReadyDelay,
		DeleteTimeout: cfg.DeleteTimeout,
	})

	return &ClientContext{
		Config:  cfg,
		Store:   store,
		Manager: mgr,
		Match:   match.New(mgr),
	}, nil
}

// Authenticate exchanges the device identity for a session, re-prompting for
// a different display name for as long as the service reports the name taken.
func (c *ClientContext) Authenticate(ctx context.Context, name string) (session.Session, error) {
	for {
		stopSpinner := ui.RunSpinner("Signing in...")
		sess, err := c.Manager.Authenticate(ctx, name)
		stopSpinner()
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNameTaken) {
			return session.Session{}, err
		}

		ui.PrintWarningf("The name %q is already taken.", displayNameFor(name, c))
		name, err = promptLine("Pick another display name: ")
		if err != nil {
			return session.Session{}, err
		}
		if name == "" {
			return session.Session{}, session.ErrNameTaken
		}
	}
}

// Connect opens the duplex channel with a spinner on the terminal.
func (c *ClientContext) Connect(ctx context.Context) error {
	stopSpinner := ui.RunConnectionSpinner("Connecting to " + c.Config.Domain + "...")
	defer stopSpinner()
	return c.Manager.Connect(ctx)
}

// displayNameFor resolves the name the rejection was actually about: the flag
// value when given, otherwise the stored identity the manager sent. A rejected
// attempt leaves no session behind, so the session is only a last resort.
func displayNameFor(name string, c *ClientContext) string {
	if name != "" {
		return name
	}
	if c.Store != nil {
		if id, ok, err := c.Store.Load(); err == nil && ok {
			return id.DisplayName
		}
	}
	if sess, ok := c.Manager.Session(); ok {
		return sess.DisplayName
	}
	return name
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// requestTimeout bounds one-shot request/response commands.
const requestTimeout = 15 * time.Second
