package webserver

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/decred/dcrd/bech32"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
)

const (
	testAdminKey  = "admin-key"
	testJWTSecret = "0123456789abcdef0123456789abcdef"
)

type fixture struct {
	t     *testing.T
	r     *gin.Engine
	store *data.Store
	rdb   *redis.Client
	clock *testclock.Clock
}

type fixtureOption func(*config.API, *bool)

func withoutRedis() fixtureOption {
	return func(_ *config.API, useRedis *bool) { *useRedis = false }
}

func withAuthRateLimit(n int) fixtureOption {
	return func(cfg *config.API, _ *bool) { cfg.AuthRateLimit = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, data.Migrate(db))

	cfg := config.API{
		JWTSecret:        testJWTSecret,
		AdminAPIKey:      testAdminKey,
		CORSOrigins:      []string{"http://localhost:3000"},
		OverviewCacheTTL: time.Minute,
		AuthRateLimit:    100,
	}
	useRedis := true
	for _, opt := range opts {
		opt(&cfg, &useRedis)
	}

	var rdb *redis.Client
	if useRedis {
		mr := miniredis.RunT(t)
		rdb, err = data.NewRedis(context.Background(), "redis://"+mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
	}

	clk := testclock.NewClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	store := data.NewStore(db, clk)
	return &fixture{
		t:     t,
		r:     New(cfg, store, rdb, clk, zaptest.NewLogger(t)),
		store: store,
		rdb:   rdb,
		clock: clk,
	}
}

type header map[string]string

func adminHeader() header { return header{"X-API-Key": testAdminKey} }

func (f *fixture) do(method, path string, body any, h header) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func keyHash(b byte) []byte { return bytes.Repeat([]byte{b}, cardano.CredentialLen) }

func cip105(t *testing.T, hash []byte) string {
	t.Helper()
	out, err := bech32.EncodeFromBase256("drep", hash)
	require.NoError(t, err)
	return out
}

func cip129(hash []byte) string { return cardano.DRepCredential{Hash: hash}.CIP129() }

// approvedDrep registers and approves a DRep, returning its API key header.
func (f *fixture) approvedDrep(hash []byte) header {
	f.t.Helper()
	ctx := context.Background()
	_, err := f.store.RegisterDrep(ctx, data.DrepRegistrationInput{DrepID: cip129(hash), DrepName: "d", DiscordGuildID: "1"})
	require.NoError(f.t, err)
	reg, err := f.store.ReviewDrep(ctx, cip129(hash), true, "")
	require.NoError(f.t, err)
	return header{"X-API-Key": *reg.APIKey}
}

func (f *fixture) proposal(txByte string, index uint32) *types.Proposal {
	f.t.Helper()
	p, err := f.store.UpsertProposal(context.Background(), data.ProposalInput{
		TxHash:          strings.Repeat(txByte, 32),
		CertIndex:       index,
		Title:           "Treasury " + txByte,
		Type:            types.TypeTreasuryWithdrawal,
		Status:          types.StatusActive,
		SubmissionEpoch: 500,
	})
	require.NoError(f.t, err)
	return p
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NotValidf("x"), http.StatusBadRequest},
		{errors.Unauthorizedf("x"), http.StatusUnauthorized},
		{errors.Forbiddenf("x"), http.StatusForbidden},
		{errors.NotFoundf("x"), http.StatusNotFound},
		{errors.AlreadyExistsf("x"), http.StatusConflict},
		{errors.Annotate(errors.NotFoundf("x"), "wrapped"), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := classify(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOverviewSerializesLovelaceAsStrings(t *testing.T) {
	f := newFixture(t)
	f.proposal("aa", 0)
	_, err := f.store.UpsertNCL(context.Background(), 2025, "98765432109876543210", "350000000000000")
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/v1/overview", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "98765432109876543210", raw["ncl"]["current"])
	assert.Equal(t, "350000000000000", raw["ncl"]["limit"])
	assert.EqualValues(t, 1, raw["proposals"]["total"])
	assert.EqualValues(t, 1, raw["proposals"]["active"])
}

func TestOverviewIsCachedUntilAdminWrite(t *testing.T) {
	f := newFixture(t)
	f.proposal("aa", 0)

	first := decode[data.Overview](t, f.do(http.MethodGet, "/v1/overview", nil, nil))
	assert.EqualValues(t, 1, first.Proposals.Total)

	f.proposal("bb", 0)
	cached := decode[data.Overview](t, f.do(http.MethodGet, "/v1/overview", nil, nil))
	assert.EqualValues(t, 1, cached.Proposals.Total)

	w := f.do(http.MethodPut, "/v1/admin/ncl/2025", gin.H{"current": "1", "limit": "2"}, adminHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fresh := decode[data.Overview](t, f.do(http.MethodGet, "/v1/overview", nil, nil))
	assert.EqualValues(t, 2, fresh.Proposals.Total)
	assert.Equal(t, "1", fresh.NCL.Current)
}

func TestOverviewRecomputesOverCorruptCache(t *testing.T) {
	f := newFixture(t)
	f.proposal("aa", 0)
	ctx := context.Background()
	require.NoError(t, f.rdb.Set(ctx, "cache:"+overviewCacheKey, `{"proposals":{"total":9},"ncl":"oops"}`, time.Minute).Err())

	w := f.do(http.MethodGet, "/v1/overview", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[data.Overview](t, w)
	assert.EqualValues(t, 1, got.Proposals.Total)
	assert.Equal(t, "0", got.NCL.Current)

	var cached data.Overview
	hit, err := data.CacheGet(ctx, f.rdb, overviewCacheKey, &cached)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, got, cached)
}

func TestProposalLookupAcceptsTxRef(t *testing.T) {
	f := newFixture(t)
	p := f.proposal("ab", 3)

	byID := decode[types.Proposal](t, f.do(http.MethodGet, "/v1/proposals/"+p.ProposalID, nil, nil))
	byRef := decode[types.Proposal](t, f.do(http.MethodGet, "/v1/proposals/"+p.TxHash+":3", nil, nil))
	assert.Equal(t, byID.ProposalID, byRef.ProposalID)

	w := f.do(http.MethodGet, "/v1/proposals/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, "not_found", body.Error)
	assert.NotEmpty(t, body.Message)

	w = f.do(http.MethodGet, "/v1/proposals?status=pending", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	list := decode[struct {
		Proposals []types.Proposal `json:"proposals"`
		Total     int64            `json:"total"`
		Limit     int              `json:"limit"`
	}](t, f.do(http.MethodGet, "/v1/proposals?status=active&limit=500", nil, nil))
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, proposalsMaxLimit, list.Limit)
}

func TestSentimentForUnknownProposalIsZero(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/v1/sentiment/whatever", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[data.SentimentSummary](t, w)
	assert.Equal(t, data.SentimentTotals{}, sum.Totals)
	assert.Equal(t, "whatever", sum.ProposalID)
}

func TestSentimentRejectsInvalidDrepFilter(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/v1/sentiment/x?drepId=drep1notreal", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReactionWithLegacyDrepIDIsStoredCanonically(t *testing.T) {
	f := newFixture(t)
	hash := keyHash(0x21)
	p := f.proposal("cd", 0)

	for _, v := range []string{"yes", "YES", "No"} {
		w := f.do(http.MethodPost, "/v1/sentiment/reaction", gin.H{
			"proposalId":    p.TxHash + ":0",
			"drepId":        cip105(t, hash),
			"discordUserId": "42",
			"sentiment":     v,
			"action":        "add",
		}, adminHeader())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	sum := decode[data.SentimentSummary](t, f.do(http.MethodGet, "/v1/sentiment/"+p.ProposalID+"?drepId="+cip105(t, hash), nil, nil))
	assert.Equal(t, cip129(hash), sum.DrepID)
	assert.EqualValues(t, 2, sum.Totals.YesCount)
	assert.EqualValues(t, 1, sum.Totals.NoCount)
	assert.EqualValues(t, 3, sum.Totals.TotalReactions)
	require.Len(t, sum.ByDrep, 1)
	assert.Equal(t, cip129(hash), sum.ByDrep[0].DrepID)

	reactions := decode[struct {
		Total int64 `json:"total"`
	}](t, f.do(http.MethodGet, "/v1/sentiment/"+p.ProposalID+"/reactions?sentiment=yes", nil, nil))
	assert.EqualValues(t, 2, reactions.Total)

	w := f.do(http.MethodPost, "/v1/sentiment/reaction", gin.H{
		"proposalId": p.ProposalID, "drepId": cip129(hash), "discordUserId": "42", "sentiment": "maybe",
	}, adminHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReactionResponseCarriesCounts(t *testing.T) {
	f := newFixture(t)
	h := f.approvedDrep(keyHash(0x22))
	w := f.do(http.MethodPost, "/v1/sentiment/reaction", gin.H{
		"proposalId": "p1", "discordUserId": "7", "sentiment": "abstain",
	}, h)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		DrepID string               `json:"drepId"`
		Counts data.SentimentTotals `json:"counts"`
	}](t, w)
	assert.Equal(t, cip129(keyHash(0x22)), resp.DrepID)
	assert.EqualValues(t, 1, resp.Counts.AbstainCount)
	assert.EqualValues(t, 1, resp.Counts.TotalReactions)
}

func TestCommentIsSanitized(t *testing.T) {
	f := newFixture(t)
	hash := keyHash(0x23)
	w := f.do(http.MethodPost, "/v1/sentiment/comment", gin.H{
		"proposalId": "p1", "drepId": cip129(hash), "discordUserId": "9",
		"comment": "<script>alert(1)</script><b>Support</b> this", "suggestedSentiment": "yes",
	}, adminHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list := decode[struct {
		Comments []types.DiscordReaction `json:"comments"`
	}](t, f.do(http.MethodGet, "/v1/sentiment/p1/comments", nil, nil))
	require.Len(t, list.Comments, 1)
	assert.Equal(t, "Support this", *list.Comments[0].Comment)
	assert.Equal(t, types.SentimentYes, *list.Comments[0].SuggestedSentiment)

	sum := decode[data.SentimentSummary](t, f.do(http.MethodGet, "/v1/sentiment/p1", nil, nil))
	assert.EqualValues(t, 1, sum.Totals.CommentCount)
	assert.EqualValues(t, 0, sum.Totals.TotalReactions)

	w = f.do(http.MethodPost, "/v1/sentiment/comment", gin.H{
		"proposalId": "p1", "drepId": cip129(hash), "discordUserId": "9", "comment": "<img src=x>",
	}, adminHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCredentials(t *testing.T) {
	f := newFixture(t)
	own := f.approvedDrep(keyHash(0x31))
	other := cip129(keyHash(0x32))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		h      header
		want   int
	}{
		{"anonymous write", http.MethodPost, "/v1/sentiment/reaction", gin.H{"proposalId": "p", "discordUserId": "1", "sentiment": "yes"}, nil, http.StatusUnauthorized},
		{"unknown key", http.MethodGet, "/v1/overview", nil, header{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bad bearer", http.MethodGet, "/v1/drep/me/sentiment", nil, header{"Authorization": "Bearer junk"}, http.StatusUnauthorized},
		{"drep acting for other", http.MethodPost, "/v1/sentiment/reaction", gin.H{"proposalId": "p", "drepId": other, "discordUserId": "1", "sentiment": "yes"}, own, http.StatusForbidden},
		{"drep on admin route", http.MethodGet, "/v1/admin/dreps", nil, own, http.StatusForbidden},
		{"admin without drep", http.MethodPost, "/v1/sentiment/reaction", gin.H{"proposalId": "p", "discordUserId": "1", "sentiment": "yes"}, adminHeader(), http.StatusBadRequest},
		{"admin route", http.MethodGet, "/v1/admin/dreps", nil, adminHeader(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body, tt.h)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestDrepRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	hash := keyHash(0x41)

	body := gin.H{"drepId": cip105(t, hash), "discordGuildId": "1234", "drepName": "Alice", "contactEmail": "alice@example.com"}
	w := f.do(http.MethodPost, "/v1/dreps/register", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "apiKey")

	w = f.do(http.MethodPost, "/v1/dreps/register", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/v1/admin/dreps/"+cip129(hash)+"/rotate-key", nil, adminHeader())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/admin/dreps/"+cip105(t, hash)+"/approve", nil, adminHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[struct {
		APIKey string `json:"apiKey"`
	}](t, w)
	require.NotEmpty(t, approved.APIKey)

	status := decode[struct {
		Status string `json:"status"`
	}](t, f.do(http.MethodGet, "/v1/dreps/"+cip129(hash), nil, nil))
	assert.Equal(t, "APPROVED", status.Status)

	w = f.do(http.MethodGet, "/v1/drep/me/sentiment", nil, header{"X-API-Key": approved.APIKey})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/v1/admin/dreps/"+cip129(hash)+"/reject", gin.H{"rationale": "inactive"}, adminHeader())
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/v1/drep/me/sentiment", nil, header{"X-API-Key": approved.APIKey})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/v1/dreps/not-a-drep", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyDrepVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approvedHash, pendingHash := keyHash(0x51), keyHash(0x52)
	h := f.approvedDrep(approvedHash)
	_, err := f.store.RegisterDrep(ctx, data.DrepRegistrationInput{DrepID: cip129(pendingHash), DrepName: "p"})
	require.NoError(t, err)
	p := f.proposal("ef", 0)

	w := f.do(http.MethodPost, "/v1/sentiment/notify-drep-vote", gin.H{
		"proposalId": p.ProposalID, "drepId": cip105(t, pendingHash), "vote": "yes",
	}, adminHeader())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/v1/sentiment/notify-drep-vote", gin.H{"proposalId": p.ProposalID, "vote": "perhaps"}, h)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/sentiment/notify-drep-vote", gin.H{"proposalId": p.ProposalID, "vote": "no"}, h)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	noPost := decode[map[string]any](t, w)
	assert.Equal(t, false, noPost["discordNotificationPending"])

	w = f.do(http.MethodPost, "/v1/guilds", gin.H{"guildId": "100", "guildName": "g", "forumChannelId": "200"}, h)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/v1/guilds/100/posts", gin.H{"proposalId": p.TxHash + ":0", "threadId": "300"}, h)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/v1/guilds/100/posts", gin.H{"proposalId": p.ProposalID, "threadId": "301"}, h)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/v1/sentiment/notify-drep-vote", gin.H{
		"proposalId": p.ProposalID, "vote": "No", "txHash": strings.Repeat("12", 32), "rationaleUrl": "https://example.com/r.json",
	}, h)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withPost := decode[map[string]any](t, w)
	assert.Equal(t, true, withPost["discordNotificationPending"])
	assert.Equal(t, "300", withPost["threadId"])

	pending := decode[struct {
		Pending []types.GuildProposalPost `json:"pending"`
	}](t, f.do(http.MethodGet, "/v1/sentiment/pending-drep-votes", nil, h))
	require.Len(t, pending.Pending, 1)
	assert.Equal(t, types.SentimentNo, *pending.Pending[0].DrepVote)

	mark := gin.H{"postId": pending.Pending[0].ID}
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/sentiment/mark-drep-vote-notified", mark, h).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/sentiment/mark-drep-vote-notified", mark, h).Code)

	pending = decode[struct {
		Pending []types.GuildProposalPost `json:"pending"`
	}](t, f.do(http.MethodGet, "/v1/sentiment/pending-drep-votes", nil, adminHeader()))
	assert.Empty(t, pending.Pending)
}

func TestGuildChannelsAndPosts(t *testing.T) {
	f := newFixture(t)
	hash := keyHash(0x61)
	h := f.approvedDrep(hash)
	otherKey := f.approvedDrep(keyHash(0x62))

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/guilds", gin.H{"guildId": "10"}, h).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/v1/guilds", gin.H{"guildId": "10"}, h).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/v1/guilds/10", nil, otherKey).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/guilds/11", nil, h).Code)

	w := f.do(http.MethodPatch, "/v1/guilds/10/channels", gin.H{"delegateChannelId": "77"}, h)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g := decode[types.Guild](t, w)
	assert.Equal(t, "77", g.DelegateChannelID)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/guilds/10/posts", gin.H{"proposalId": "a", "threadId": "1"}, h).Code)
	posts := decode[struct {
		ProposalIDs []string `json:"proposalIds"`
	}](t, f.do(http.MethodGet, "/v1/guilds/10/posts", nil, h))
	assert.Equal(t, []string{"a"}, posts.ProposalIDs)
}

func TestDelegatorVerifyAndCheck(t *testing.T) {
	f := newFixture(t)
	hash := keyHash(0x71)
	h := f.approvedDrep(hash)

	stake, err := bech32.EncodeFromBase256("stake", append([]byte{0xe1}, bytes.Repeat([]byte{0x09}, 28)...))
	require.NoError(t, err)

	check := func() map[string]any {
		return decode[map[string]any](t, f.do(http.MethodGet, "/v1/delegators/check?discordUserId=55", nil, h))
	}
	assert.Equal(t, false, check()["verified"])

	w := f.do(http.MethodPost, "/v1/delegators/verify", gin.H{"discordUserId": "55", "stakeAddress": "stake1bogus"}, h)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/delegators/verify", gin.H{
		"discordUserId": "55", "discordUsername": "bob", "stakeAddress": stake, "liveStake": "1500000",
	}, h)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, check()["verified"])
}

func TestWalletLogin(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	hash := cardano.KeyHash(pub)

	w := f.do(http.MethodPost, "/v1/auth/challenge", gin.H{"drepId": cip105(t, hash)}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	challenge := decode[struct {
		DrepID string `json:"drepId"`
		Nonce  string `json:"nonce"`
	}](t, w)
	assert.Equal(t, cip129(hash), challenge.DrepID)

	sig := ed25519.Sign(priv, []byte(challenge.Nonce))
	login := gin.H{"drepId": challenge.DrepID, "publicKey": hex.EncodeToString(pub), "signature": hex.EncodeToString(sig)}

	w = f.do(http.MethodPost, "/v1/auth/verify", login, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[struct {
		Token string `json:"token"`
	}](t, w)

	w = f.do(http.MethodGet, "/v1/drep/me/sentiment", nil, header{"Authorization": "Bearer " + session.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), cip129(hash))

	// The nonce is single use.
	w = f.do(http.MethodPost, "/v1/auth/verify", login, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	f.clock.Advance(SessionTTL + time.Minute)
	w = f.do(http.MethodGet, "/v1/drep/me/sentiment", nil, header{"Authorization": "Bearer " + session.Token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletLoginRejectsForeignKey(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	drep := cip129(keyHash(0x01))

	w := f.do(http.MethodPost, "/v1/auth/challenge", gin.H{"drepId": drep}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode[struct {
		Nonce string `json:"nonce"`
	}](t, w).Nonce

	w = f.do(http.MethodPost, "/v1/auth/verify", gin.H{
		"drepId": drep, "publicKey": hex.EncodeToString(pub), "signature": hex.EncodeToString(ed25519.Sign(priv, []byte(nonce))),
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletLoginNeedsRedis(t *testing.T) {
	f := newFixture(t, withoutRedis())
	w := f.do(http.MethodPost, "/v1/auth/challenge", gin.H{"drepId": cip129(keyHash(0x02))}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Overview still works without a cache.
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/overview", nil, nil).Code)
}

func TestAuthRateLimit(t *testing.T) {
	f := newFixture(t, withAuthRateLimit(2))
	body := gin.H{"drepId": cip129(keyHash(0x03))}
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/auth/challenge", body, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/auth/challenge", body, nil).Code)
	w := f.do(http.MethodPost, "/v1/auth/challenge", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.clock.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/auth/challenge", body, nil).Code)
}

func TestSentimentListingsClampPageSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < data.CommentsMaxLimit+1; i++ {
		_, err := f.store.RecordComment(ctx, data.CommentInput{ProposalID: "pc", DiscordUserID: "1", Comment: "fine"})
		require.NoError(t, err)
	}
	for i := 0; i < data.ReactionsMaxLimit+1; i++ {
		_, err := f.store.RecordReaction(ctx, data.ReactionInput{ProposalID: "pr", DiscordUserID: "1", Sentiment: types.SentimentYes})
		require.NoError(t, err)
	}

	type page struct {
		Comments  []json.RawMessage `json:"comments"`
		Reactions []json.RawMessage `json:"reactions"`
		Total     int64             `json:"total"`
		Limit     int               `json:"limit"`
	}
	tests := []struct {
		name      string
		path      string
		wantLimit int
		rows      func(page) int
	}{
		{"comments default", "/v1/sentiment/pc/comments", 50, func(p page) int { return len(p.Comments) }},
		{"comments capped", "/v1/sentiment/pc/comments?limit=1000", 100, func(p page) int { return len(p.Comments) }},
		{"reactions default", "/v1/sentiment/pr/reactions", 100, func(p page) int { return len(p.Reactions) }},
		{"reactions capped", "/v1/sentiment/pr/reactions?limit=1000", 500, func(p page) int { return len(p.Reactions) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, nil, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			got := decode[page](t, w)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantLimit, tt.rows(got))
			assert.Greater(t, got.Total, int64(tt.wantLimit))
		})
	}
}

func TestNotifyDrepVoteRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.proposal("ab", 1)
	pendingHash, rejectedHash := keyHash(0x61), keyHash(0x62)

	_, err := f.store.RegisterDrep(ctx, data.DrepRegistrationInput{DrepID: cip129(pendingHash), DrepName: "p"})
	require.NoError(t, err)
	f.approvedDrep(rejectedHash)

	var posts []*types.GuildProposalPost
	for i, hash := range [][]byte{pendingHash, rejectedHash} {
		post, err := f.store.RecordPost(ctx, data.PostInput{
			GuildID: "g", DrepID: cip129(hash), ProposalID: p.ProposalID, ThreadID: string(rune('1' + i)),
		})
		require.NoError(t, err)
		posts = append(posts, post)
	}
	_, err = f.store.ReviewDrep(ctx, cip129(rejectedHash), false, "inactive")
	require.NoError(t, err)

	for _, hash := range [][]byte{pendingHash, rejectedHash} {
		w := f.do(http.MethodPost, "/v1/sentiment/notify-drep-vote", gin.H{
			"proposalId": p.ProposalID, "drepId": cip105(t, hash), "vote": "yes",
		}, adminHeader())
		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	}

	for _, post := range posts {
		got, err := f.store.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, types.NotifyIdle, got.NotifyState)
		assert.Nil(t, got.DrepVote)
		assert.Nil(t, got.DrepVotedAt)
	}
	pending, err := f.store.PendingDrepVotes(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
