// Package proposals renders governance actions as forum threads and keeps a
// guild's forum in step with the backend's active proposals.
package proposals

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

const (
	footerPrefix   = "Proposal ID: "
	votePrefix     = "vote:"
	sentimentField = "Delegator sentiment"

	maxThreadName  = 100
	maxTitle       = 256
	maxDescription = 1500

	embedColor = 0x0033ad
)

var lovelacePerADA = big.NewInt(1_000_000)

// ThreadName is the forum thread title for p.
func ThreadName(p types.Proposal) string {
	name := strings.TrimSpace(p.Title)
	if name == "" {
		name = "Governance action " + p.ProposalID
	}
	return discord.Truncate(name, maxThreadName)
}

// Embed renders the proposal summary. counts may be nil for a fresh post.
func Embed(p types.Proposal, counts *api.Counts) *discordgo.MessageEmbed {
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = "_No abstract provided._"
	}
	e := &discordgo.MessageEmbed{
		Title:       discord.Truncate(ThreadName(p), maxTitle),
		Description: discord.WrapURLsNoEmbed(discord.Truncate(desc, maxDescription)),
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: footerPrefix + p.ProposalID},
	}
	typ := p.Type
	if typ == "" {
		typ = "Unknown"
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Type", Value: typ, Inline: true})
	if p.SubmissionEpoch > 0 {
		epochs := fmt.Sprintf("%d", p.SubmissionEpoch)
		if p.ExpirationEpoch > 0 {
			epochs = fmt.Sprintf("%d → %d", p.SubmissionEpoch, p.ExpirationEpoch)
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Epochs", Value: epochs, Inline: true})
	}
	if ada, ok := FormatADA(p.WithdrawalAmount); ok {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Withdrawal", Value: ada, Inline: true})
	}
	var c api.Counts
	if counts != nil {
		c = *counts
	}
	e.Fields = append(e.Fields, sentimentEmbedField(c))
	return e
}

func sentimentEmbedField(c api.Counts) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:  sentimentField,
		Value: fmt.Sprintf("👍 Yes: **%d** · 👎 No: **%d** · 🤷 Abstain: **%d**", c.YesCount, c.NoCount, c.AbstainCount),
	}
}

// UpdateSentiment returns copies of embeds with the sentiment field of the
// proposal embed replaced by counts.
func UpdateSentiment(embeds []*discordgo.MessageEmbed, counts api.Counts) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		if e == nil {
			continue
		}
		cp := *e
		if cp.Footer != nil && strings.HasPrefix(cp.Footer.Text, footerPrefix) {
			fields := make([]*discordgo.MessageEmbedField, 0, len(cp.Fields)+1)
			replaced := false
			for _, f := range cp.Fields {
				if f != nil && f.Name == sentimentField {
					fields = append(fields, sentimentEmbedField(counts))
					replaced = true
					continue
				}
				fields = append(fields, f)
			}
			if !replaced {
				fields = append(fields, sentimentEmbedField(counts))
			}
			cp.Fields = fields
		}
		out = append(out, &cp)
	}
	return out
}

// FormatADA renders a lovelace decimal string as ADA with thousands
// separators. Empty, zero or malformed amounts report false.
func FormatADA(lovelace string) (string, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(lovelace), 10)
	if !ok || v.Sign() <= 0 {
		return "", false
	}
	whole, frac := new(big.Int).QuoRem(v, lovelacePerADA, new(big.Int))
	s := "₳" + humanize.BigComma(whole)
	if frac.Sign() != 0 {
		s += strings.TrimRight(fmt.Sprintf(".%06d", frac.Int64()), "0")
	}
	return s, true
}

// Components are the vote buttons attached to every proposal thread.
func Components(proposalID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Yes", Style: discordgo.SuccessButton, CustomID: VoteCustomID(types.SentimentYes, proposalID)},
			discordgo.Button{Label: "No", Style: discordgo.DangerButton, CustomID: VoteCustomID(types.SentimentNo, proposalID)},
			discordgo.Button{Label: "Abstain", Style: discordgo.SecondaryButton, CustomID: VoteCustomID(types.SentimentAbstain, proposalID)},
		}},
	}
}

// Message is the starter message of a proposal thread.
func Message(p types.Proposal) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{Embed(p, nil)},
		Components: Components(p.ProposalID),
	}
}

// VoteCustomID encodes a vote button as vote:<yes|no|abstain>:<proposalId>.
func VoteCustomID(s types.Sentiment, proposalID string) string {
	return votePrefix + strings.ToLower(string(s)) + ":" + proposalID
}

// ParseVoteCustomID decodes a vote button id.
func ParseVoteCustomID(id string) (types.Sentiment, string, bool) {
	rest, ok := strings.CutPrefix(id, votePrefix)
	if !ok {
		return "", "", false
	}
	raw, proposalID, ok := strings.Cut(rest, ":")
	if !ok || proposalID == "" {
		return "", "", false
	}
	s, ok := types.ParseSentiment(raw)
	if !ok {
		return "", "", false
	}
	return s, proposalID, true
}

// ParseFooter extracts the proposal id from a proposal embed footer.
func ParseFooter(embeds []*discordgo.MessageEmbed) (string, bool) {
	for _, e := range embeds {
		if e == nil || e.Footer == nil {
			continue
		}
		if id, ok := strings.CutPrefix(e.Footer.Text, footerPrefix); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id), true
		}
	}
	return "", false
}

// maxTagName is Discord's limit on forum tag names.
const maxTagName = 20

// tagAliases are the short tag names used for types whose full name is long
// or awkward in a forum sidebar.
var tagAliases = map[string][]string{
	types.TypeParameterChange:    {"Parameter Change", "Protocol Params", "Parameters"},
	types.TypeHardFork:           {"Hard Fork"},
	types.TypeTreasuryWithdrawal: {"Treasury Withdrawal", "Treasury"},
	types.TypeNoConfidence:       {"Motion of No Confidence"},
	types.TypeUpdateCommittee:    {"Committee Update", "Committee"},
	types.TypeNewConstitution:    {"Constitution"},
	types.TypeInfoAction:         {"Info", "Informational"},
}

// MatchTag finds the forum tag for a governance action type. Tags are matched
// case-insensitively on the full type name, the name cut to Discord's tag
// length, then the known short names.
func MatchTag(tags []discordgo.ForumTag, proposalType string) (string, bool) {
	want := strings.TrimSpace(proposalType)
	if want == "" {
		return "", false
	}
	candidates := []string{want}
	if r := []rune(want); len(r) > maxTagName {
		candidates = append(candidates, strings.TrimSpace(string(r[:maxTagName])))
	}
	for known, aliases := range tagAliases {
		if strings.EqualFold(known, want) {
			candidates = append(candidates, aliases...)
		}
	}
	for _, c := range candidates {
		for _, t := range tags {
			if strings.EqualFold(strings.TrimSpace(t.Name), c) {
				return t.ID, true
			}
		}
	}
	return "", false
}
