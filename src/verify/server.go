package verify

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/webserver"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

var snowflake = regexp.MustCompile(`^[0-9]{15,21}$`)

// Delegations records verified delegators with the backend.
type Delegations interface {
	VerifyDelegator(ctx context.Context, d api.Delegation) error
}

type Server struct {
	checker *Checker
	backend Delegations
	network string
	log     *zap.Logger
}

// New builds the gin engine for the verification service.
func New(checker *Checker, backend Delegations, network string, log *zap.Logger) *gin.Engine {
	s := &Server{checker: checker, backend: backend, network: network, log: log.Named("verify")}
	r := gin.New()
	r.Use(webserver.RequestLogger(log), gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("panic in handler", zap.Any("panic", rec), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
	}))
	r.SetHTMLTemplate(pageTemplate)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", s.page)
	g := r.Group("/api")
	g.GET("/status", s.status)
	g.GET("/delegation-certificates", s.certificates)
	g.POST("/verify", s.verify)
	return r
}

type pageData struct {
	DiscordUserID string
	DrepID        string
	Network       string
	Valid         bool
}

func (s *Server) page(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("discordUserId"))
	c.HTML(http.StatusOK, "index.html", pageData{
		DiscordUserID: userID,
		DrepID:        s.checker.target,
		Network:       s.network,
		Valid:         snowflake.MatchString(userID),
	})
}

func (s *Server) status(c *gin.Context) {
	st, err := s.checker.Status(c.Request.Context(), c.Query("stakeAddress"))
	if err != nil {
		webserver.RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) certificates(c *gin.Context) {
	st, err := s.checker.Status(c.Request.Context(), c.Query("stakeAddress"))
	if err != nil {
		webserver.RespondError(c, s.log, err)
		return
	}
	certs, err := s.checker.Certificates(st)
	if err != nil {
		webserver.RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st, "certificates": certs})
}

type verifyRequest struct {
	DiscordUserID   string `json:"discordUserId"`
	DiscordUsername string `json:"discordUsername"`
	StakeAddress    string `json:"stakeAddress"`
}

// verify re-checks the delegation on chain before telling the backend, so
// the page's earlier status answer is never trusted.
func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := webserver.BindJSON(c, &req); err != nil {
		webserver.RespondError(c, s.log, err)
		return
	}
	if !snowflake.MatchString(strings.TrimSpace(req.DiscordUserID)) {
		webserver.RespondError(c, s.log, errors.NotValidf("discordUserId"))
		return
	}
	ctx := c.Request.Context()
	st, err := s.checker.Status(ctx, req.StakeAddress)
	if err != nil {
		webserver.RespondError(c, s.log, err)
		return
	}
	if st.State != StateDelegated {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   "not_delegated",
			"message": "this stake address is not delegated to the DRep yet",
			"status":  st,
		})
		return
	}
	err = s.backend.VerifyDelegator(ctx, api.Delegation{
		DrepID:          s.checker.target,
		DiscordUserID:   strings.TrimSpace(req.DiscordUserID),
		DiscordUsername: strings.TrimSpace(req.DiscordUsername),
		StakeAddress:    st.StakeAddress,
		LiveStake:       st.LiveStake,
	})
	if err != nil {
		s.log.Error("record delegator", zap.String("stake", st.StakeAddress), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":   "backend_unavailable",
			"message": "verification could not be saved, please try again shortly",
		})
		return
	}
	s.log.Info("delegator verified", zap.String("stake", st.StakeAddress), zap.String("discord_user", req.DiscordUserID))
	c.JSON(http.StatusOK, gin.H{"verified": true, "status": st})
}
