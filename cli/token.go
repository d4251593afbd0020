package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sewstat/api"
	"sewstat/config"
)

type AdminTokenCmd struct {
	User string `help:"Subject of the token; defaults to ADMIN_USER."`
}

func (c *AdminTokenCmd) Run(ctx *Context) error {
	cfg, err := ctx.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AdminJWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set, admin endpoints are disabled")
	}
	user := c.User
	if user == "" {
		user = cfg.AdminUser
	}
	token, exp, err := api.GenerateAdminToken(cfg.AdminJWTSecret, user)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(ctx.Out, token)
	fmt.Fprintln(os.Stderr, mutedStyle.Render("expires "+time.Unix(exp, 0).Format(time.RFC3339)))
	return nil
}

type SourceTokenSetCmd struct {
	Token string `arg:"" optional:"" help:"Token value; read from stdin when omitted."`
}

func (c *SourceTokenSetCmd) Run(ctx *Context) error {
	token := c.Token
	if token == "" {
		fmt.Fprint(os.Stderr, "Token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if err := config.SetSourceToken(token); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "✓ Source API token stored in the keyring")
	return nil
}

type SourceTokenDeleteCmd struct{}

func (c *SourceTokenDeleteCmd) Run(ctx *Context) error {
	if err := config.DeleteSourceToken(); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "✓ Source API token removed from the keyring")
	return nil
}
