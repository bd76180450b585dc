package types

import (
	"strings"
	"time"
)

// ProposalStatus is the on-chain lifecycle state of a governance action.
type ProposalStatus string

const (
	StatusActive   ProposalStatus = "ACTIVE"
	StatusRatified ProposalStatus = "RATIFIED"
	StatusEnacted  ProposalStatus = "ENACTED"
	StatusExpired  ProposalStatus = "EXPIRED"
	StatusClosed   ProposalStatus = "CLOSED"
)

var ProposalStatuses = []ProposalStatus{StatusActive, StatusRatified, StatusEnacted, StatusExpired, StatusClosed}

func ParseProposalStatus(s string) (ProposalStatus, bool) {
	st := ProposalStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ProposalStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Governance action kinds, as displayed.
const (
	TypeParameterChange    = "Protocol Parameter Change"
	TypeHardFork           = "Hard Fork Initiation"
	TypeTreasuryWithdrawal = "Treasury Withdrawals"
	TypeNoConfidence       = "No Confidence"
	TypeUpdateCommittee    = "Update Committee"
	TypeNewConstitution    = "New Constitution"
	TypeInfoAction         = "Info Action"
)

var ProposalTypes = []string{
	TypeParameterChange, TypeHardFork, TypeTreasuryWithdrawal, TypeNoConfidence,
	TypeUpdateCommittee, TypeNewConstitution, TypeInfoAction,
}

// Sentiment is a delegator's informal vote.
type Sentiment string

const (
	SentimentYes     Sentiment = "YES"
	SentimentNo      Sentiment = "NO"
	SentimentAbstain Sentiment = "ABSTAIN"
)

// ParseSentiment folds case; anything but yes/no/abstain is rejected.
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentYes:
		return SentimentYes, true
	case SentimentNo:
		return SentimentNo, true
	case SentimentAbstain:
		return SentimentAbstain, true
	}
	return "", false
}

// RegistrationStatus tracks admin review of a DRep.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// NotifyState records whether Discord has been told about a DRep's on-chain vote.
type NotifyState string

const (
	NotifyIdle    NotifyState = "IDLE"
	NotifyPending NotifyState = "PENDING_NOTIFY"
	NotifyDone    NotifyState = "NOTIFIED"
)

// Proposal is a governance action. ProposalID is the CIP-129 gov_action id;
// (TxHash, CertIndex) is the alternate key.
type Proposal struct {
	ID               uint64         `gorm:"primaryKey" json:"-"`
	ProposalID       string         `gorm:"size:128;uniqueIndex;not null" json:"proposalId"`
	TxHash           string         `gorm:"size:64;uniqueIndex:idx_proposal_tx_cert,priority:1;not null" json:"txHash"`
	CertIndex        uint32         `gorm:"uniqueIndex:idx_proposal_tx_cert,priority:2;not null" json:"certIndex"`
	Title            string         `gorm:"size:255" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Rationale        string         `gorm:"type:text" json:"rationale"`
	Type             string         `gorm:"size:64;index" json:"type"`
	Status           ProposalStatus `gorm:"size:16;index;not null" json:"status"`
	SubmissionEpoch  uint32         `gorm:"index" json:"submissionEpoch"`
	ExpirationEpoch  uint32         `json:"expirationEpoch,omitempty"`
	WithdrawalAmount string         `gorm:"size:32" json:"withdrawalAmount,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// NCLRecord is the treasury net change limit for one calendar year.
// Amounts are lovelace decimal strings.
type NCLRecord struct {
	ID        uint64    `gorm:"primaryKey" json:"-"`
	Year      int       `gorm:"uniqueIndex;not null" json:"year"`
	Current   string    `gorm:"size:32;not null;default:'0'" json:"current"`
	Limit     string    `gorm:"column:limit_amount;size:32;not null;default:'0'" json:"limit"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (NCLRecord) TableName() string { return "ncl_records" }

// DrepRegistration is a DRep's request to use the platform.
type DrepRegistration struct {
	ID             uint64             `gorm:"primaryKey" json:"-"`
	DrepID         string             `gorm:"size:128;uniqueIndex;not null" json:"drepId"`
	DiscordGuildID string             `gorm:"size:32;index" json:"discordGuildId"`
	DrepName       string             `gorm:"size:128" json:"drepName"`
	ContactEmail   string             `gorm:"size:256" json:"contactEmail,omitempty"`
	Status         RegistrationStatus `gorm:"size:16;index;not null" json:"status"`
	APIKey         *string            `gorm:"column:api_key;size:64;uniqueIndex" json:"-"`
	Rationale      string             `gorm:"type:text" json:"rationale,omitempty"`
	ReviewedAt     *time.Time         `json:"reviewedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Guild maps a Discord guild to the DRep it serves.
type Guild struct {
	ID                uint64    `gorm:"primaryKey" json:"-"`
	GuildID           string    `gorm:"size:32;uniqueIndex;not null" json:"guildId"`
	GuildName         string    `gorm:"size:128" json:"guildName"`
	DrepID            string    `gorm:"size:128;index;not null" json:"drepId"`
	ForumChannelID    string    `gorm:"size:32" json:"forumChannelId,omitempty"`
	DelegateChannelID string    `gorm:"size:32" json:"delegateChannelId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// GuildProposalPost records the forum thread created for a proposal in a
// guild, plus the DRep's on-chain vote once announced.
type GuildProposalPost struct {
	ID                uint64      `gorm:"primaryKey" json:"id"`
	GuildID           string      `gorm:"size:32;uniqueIndex:idx_post_guild_drep_proposal,priority:1;not null" json:"guildId"`
	DrepID            string      `gorm:"size:128;uniqueIndex:idx_post_guild_drep_proposal,priority:2;index;not null" json:"drepId"`
	ProposalID        string      `gorm:"size:128;uniqueIndex:idx_post_guild_drep_proposal,priority:3;not null" json:"proposalId"`
	ThreadID          string      `gorm:"size:32;not null" json:"threadId"`
	PostedAt          time.Time   `json:"postedAt"`
	DrepVote          *Sentiment  `gorm:"size:8" json:"drepVote,omitempty"`
	DrepRationaleURL  string      `gorm:"size:512" json:"drepRationaleUrl,omitempty"`
	DrepVoteTxHash    string      `gorm:"size:64" json:"drepVoteTxHash,omitempty"`
	DrepVotedAt       *time.Time  `gorm:"index" json:"drepVotedAt,omitempty"`
	NotifyState       NotifyState `gorm:"size:16;index;not null;default:'IDLE'" json:"notifyState"`
	NotifyStateAt     *time.Time  `json:"notifyStateAt,omitempty"`
	DiscordNotifiedAt *time.Time  `json:"discordNotifiedAt,omitempty"`
}

// ProposalSentiment is the running tally for one (proposal, DRep) pair.
type ProposalSentiment struct {
	ID           uint64    `gorm:"primaryKey" json:"-"`
	ProposalID   string    `gorm:"size:128;uniqueIndex:idx_sentiment_proposal_drep,priority:1;not null" json:"proposalId"`
	DrepID       string    `gorm:"size:128;uniqueIndex:idx_sentiment_proposal_drep,priority:2;not null" json:"drepId"`
	YesCount     int64     `gorm:"not null;default:0" json:"yesCount"`
	NoCount      int64     `gorm:"not null;default:0" json:"noCount"`
	AbstainCount int64     `gorm:"not null;default:0" json:"abstainCount"`
	CommentCount int64     `gorm:"not null;default:0" json:"commentCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DiscordReaction is one delegator interaction. Rows are never merged, so a
// delegator clicking twice is counted twice.
type DiscordReaction struct {
	ID                 uint64     `gorm:"primaryKey" json:"id"`
	ProposalID         string     `gorm:"size:128;index:idx_reaction_proposal_drep,priority:1;not null" json:"proposalId"`
	DrepID             string     `gorm:"size:128;index:idx_reaction_proposal_drep,priority:2;not null" json:"drepId"`
	GuildID            string     `gorm:"size:32" json:"guildId,omitempty"`
	ChannelID          string     `gorm:"size:32" json:"channelId,omitempty"`
	DiscordUserID      string     `gorm:"size:32;index;not null" json:"discordUserId"`
	DiscordUsername    string     `gorm:"size:64" json:"discordUsername"`
	Sentiment          *Sentiment `gorm:"size:8" json:"sentiment,omitempty"`
	SuggestedSentiment *Sentiment `gorm:"size:8" json:"suggestedSentiment,omitempty"`
	Comment            *string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt          time.Time  `gorm:"index" json:"createdAt"`
}

// Delegator is a Discord user whose stake delegation to a DRep was checked.
type Delegator struct {
	ID              uint64    `gorm:"primaryKey" json:"-"`
	DiscordUserID   string    `gorm:"size:32;uniqueIndex:idx_delegator_user_drep,priority:1;not null" json:"discordUserId"`
	DrepID          string    `gorm:"size:128;uniqueIndex:idx_delegator_user_drep,priority:2;not null" json:"drepId"`
	DiscordUsername string    `gorm:"size:64" json:"discordUsername"`
	StakeAddress    string    `gorm:"size:128;index;not null" json:"stakeAddress"`
	LiveStake       string    `gorm:"size:32;not null;default:'0'" json:"liveStake"`
	IsActive        bool      `gorm:"not null;default:true" json:"isActive"`
	VerifiedAt      time.Time `json:"verifiedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AllModels is the migration set.
var AllModels = []interface{}{
	&Proposal{}, &NCLRecord{}, &DrepRegistration{}, &Guild{},
	&GuildProposalPost{}, &ProposalSentiment{}, &DiscordReaction{}, &Delegator{},
}
