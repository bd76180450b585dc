package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// Auth implements wallet login for DReps: sign a one-time nonce with the
// DRep key, receive a session JWT.
type Auth struct {
	rdb       *redis.Client
	jwtSecret []byte
	clock     clock.Clock
	log       *zap.Logger
}

func NewAuth(rdb *redis.Client, secret []byte, clk clock.Clock, log *zap.Logger) Auth {
	return Auth{rdb: rdb, jwtSecret: secret, clock: clk, log: log}
}

func (a Auth) available() error {
	if a.rdb == nil {
		return errors.NotSupportedf("wallet login without redis")
	}
	return nil
}

func (a Auth) Challenge(c *gin.Context) {
	if err := a.available(); err != nil {
		RespondError(c, a.log, err)
		return
	}
	var req struct {
		DrepID string `json:"drepId" binding:"required"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, a.log, err)
		return
	}
	drep, err := normalizeDrep(req.DrepID)
	if err != nil {
		RespondError(c, a.log, err)
		return
	}
	nonce := "Sign in to Cardano governance sentiment: " + uuid.NewString()
	if err := data.SetNonce(c.Request.Context(), a.rdb, drep, nonce); err != nil {
		RespondError(c, a.log, errors.Annotate(err, "store nonce"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"drepId":    drep,
		"nonce":     nonce,
		"expiresIn": int(data.NonceTTL.Seconds()),
	})
}

func (a Auth) Verify(c *gin.Context) {
	if err := a.available(); err != nil {
		RespondError(c, a.log, err)
		return
	}
	var req struct {
		DrepID    string `json:"drepId" binding:"required"`
		PublicKey string `json:"publicKey" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, a.log, err)
		return
	}
	cred, err := cardano.ParseDRepID(req.DrepID)
	if err != nil {
		RespondError(c, a.log, errors.NewNotValid(err, "drepId"))
		return
	}
	drep := cred.CIP129()

	nonce, err := data.GetAndDelNonce(c.Request.Context(), a.rdb, drep)
	if errors.Is(err, redis.Nil) {
		RespondError(c, a.log, errors.Unauthorizedf("challenge expired"))
		return
	}
	if err != nil {
		RespondError(c, a.log, errors.Annotate(err, "read nonce"))
		return
	}
	if err := verifyDRepSignature(cred, req.PublicKey, req.Signature, nonce); err != nil {
		RespondError(c, a.log, err)
		return
	}

	now := a.clock.Now()
	token, err := issueJWT(drep, a.jwtSecret, now)
	if err != nil {
		RespondError(c, a.log, errors.Annotate(err, "sign session"))
		return
	}
	a.log.Info("drep signed in", zap.String("drep", drep))
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"drepId":    drep,
		"expiresAt": now.Add(SessionTTL).UTC(),
	})
}
