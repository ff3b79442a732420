// Package identity resolves who is performing a mutation: the account name,
// a stable account id and the machine name. Lookups never fail; anything that
// cannot be resolved falls back to types.UnknownActor or is left empty.
package identity

import (
	"os"
	"os/user"
	"strings"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Provider resolves the current actor.
type Provider interface {
	Current() types.Actor
}

// OS resolves the actor from the operating system account database.
type OS struct {
	lookupUser func() (*user.User, error)
	hostname   func() (string, error)
}

// NewOS returns a Provider backed by os/user and os.Hostname.
func NewOS() *OS {
	return &OS{lookupUser: user.Current, hostname: os.Hostname}
}

// Current implements Provider. On Windows the stable id is the account SID
// and the name is reported as DOMAIN\user.
func (p *OS) Current() types.Actor {
	actor := types.Actor{Name: types.UnknownActor}

	if u, err := p.lookupUser(); err == nil && u != nil {
		if name := strings.TrimSpace(u.Username); name != "" {
			actor.Name = name
		}
		actor.ID = u.Uid
	}
	if host, err := p.hostname(); err == nil {
		actor.Machine = host
	}
	return actor
}

// AccountName strips a DOMAIN\ prefix, so the integrity key does not change
// when the same account is reported with and without its domain.
func AccountName(actor types.Actor) string {
	if i := strings.LastIndex(actor.Name, `\`); i >= 0 {
		return actor.Name[i+1:]
	}
	return actor.Name
}

// Static is a fixed Provider, used by tests and by callers that already know
// the actor.
type Static types.Actor

// Current implements Provider.
func (s Static) Current() types.Actor { return types.Actor(s) }
