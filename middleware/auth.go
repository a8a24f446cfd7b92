package middleware

import (
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/nodelink/util"
)

// AdminKeys holds the sha256 hashes of the authorized operator keys.
type AdminKeys map[string]struct{}

// NewAdminKeys accepts authorized_keys lines or their hashes.
func NewAdminKeys(keys []string) AdminKeys {
	set := AdminKeys{}
	for _, k := range keys {
		if pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k)); err == nil {
			set[util.PkToHash(util.PublicKeyToString(pk))] = struct{}{}
			continue
		}
		set[k] = struct{}{}
	}
	return set
}

// Allows reports whether key belongs to an operator.
func (a AdminKeys) Allows(key ssh.PublicKey) bool {
	if key == nil {
		return false
	}
	_, ok := a[util.PkToHash(util.PublicKeyToString(key))]
	return ok
}

// PublicKeyHandler is the wish public-key callback for the console.
func (a AdminKeys) PublicKeyHandler(_ ssh.Context, key ssh.PublicKey) bool {
	return a.Allows(key)
}

// AuthMiddleware rejects sessions that did not authenticate with an operator key.
func AuthMiddleware(keys AdminKeys) wish.Middleware {
	log := util.Logger().WithPrefix("SSH")
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			if !keys.Allows(s.PublicKey()) {
				log.Warn("rejected ssh session", "user", s.User(), "addr", s.RemoteAddr())
				wish.Fatalln(s, "not authorized")
				return
			}
			log.Info("operator connected", "user", s.User(), "key", util.PkToHash(util.PublicKeyToString(s.PublicKey()))[:12])
			h(s)
		}
	}
}
