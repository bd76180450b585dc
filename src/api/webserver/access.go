package webserver

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
)

// Role is what a caller authenticated as.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleDRep  Role = "drep"
)

// Principal identifies the caller. DrepID is empty for admins.
type Principal struct {
	Role   Role
	DrepID string
}

const principalKey = "principal"

// Access resolves X-API-Key and Bearer credentials.
type Access struct {
	store    *data.Store
	adminKey string
	secret   []byte
	clock    clock.Clock
	log      *zap.Logger
}

func NewAccess(store *data.Store, adminKey string, secret []byte, clk clock.Clock, log *zap.Logger) Access {
	return Access{store: store, adminKey: adminKey, secret: secret, clock: clk, log: log}
}

// Authenticate attaches a Principal when credentials are present. Present
// but invalid credentials are rejected here.
func (a Access) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok, err := a.resolve(c)
		if err != nil {
			RespondError(c, a.log, err)
			return
		}
		if ok {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func (a Access) resolve(c *gin.Context) (Principal, bool, error) {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		if a.adminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.adminKey)) == 1 {
			return Principal{Role: RoleAdmin}, true, nil
		}
		reg, err := a.store.DrepByAPIKey(c.Request.Context(), key)
		if err != nil {
			return Principal{}, false, err
		}
		return Principal{Role: RoleDRep, DrepID: reg.DrepID}, true, nil
	}
	if h := c.GetHeader("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return Principal{}, false, errors.Unauthorizedf("authorization scheme")
		}
		drepID, err := parseJWT(strings.TrimSpace(raw), a.secret, a.clock.Now())
		if err != nil {
			return Principal{}, false, err
		}
		return Principal{Role: RoleDRep, DrepID: drepID}, true, nil
	}
	return Principal{}, false, nil
}

// RequireAuth rejects anonymous callers.
func (a Access) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := principal(c); !ok {
			RespondError(c, a.log, errors.Unauthorizedf("credentials required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin allows only the admin key.
func (a Access) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			RespondError(c, a.log, errors.Unauthorizedf("credentials required"))
			return
		}
		if p.Role != RoleAdmin {
			RespondError(c, a.log, errors.Forbiddenf("admin access required"))
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// scopeDrep decides which DRep a request acts for. DReps may only act for
// themselves and default to their own id; admins must name one.
func scopeDrep(c *gin.Context, requested string) (string, error) {
	p, _ := principal(c)
	if requested != "" {
		id, err := normalizeDrep(requested)
		if err != nil {
			return "", err
		}
		if p.Role == RoleDRep && id != p.DrepID {
			return "", errors.Forbiddenf("acting for drep %s", id)
		}
		return id, nil
	}
	if p.Role == RoleDRep {
		return p.DrepID, nil
	}
	return "", errors.NotValidf("missing drepId")
}
