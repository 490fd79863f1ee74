// Package identity supplies the user id that scopes every query.
package identity

import (
	"context"
	"errors"
	"os"
	"os/user"
	"strings"

	"github.com/julianstephens/doselit/internal/constants"
)

var ErrNoUser = errors.New("no user identity available, pass --user or set DOSELIT_USER")

type Provider interface {
	CurrentUser(ctx context.Context) (string, error)
}

// Static returns a fixed user id.
type Static string

func (s Static) CurrentUser(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNoUser
	}
	return id, nil
}

var currentOSUser = user.Current

// OS returns the login name of the user running the process.
type OS struct{}

func (OS) CurrentUser(context.Context) (string, error) {
	u, err := currentOSUser()
	if err != nil {
		return "", errors.Join(ErrNoUser, err)
	}
	if u.Username == "" {
		return "", ErrNoUser
	}
	return u.Username, nil
}

// Chain returns the first identity any provider yields.
type Chain []Provider

func (c Chain) CurrentUser(ctx context.Context) (string, error) {
	for _, p := range c {
		if id, err := p.CurrentUser(ctx); err == nil {
			return id, nil
		}
	}
	return "", ErrNoUser
}

// Resolve builds the default chain: the --user flag, DOSELIT_USER, then the
// OS user.
func Resolve(flagValue string) Provider {
	return Chain{Static(flagValue), Static(os.Getenv(constants.EnvUser)), OS{}}
}
