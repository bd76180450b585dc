package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	CommandProposal = "proposal"
	CommandSetup    = "setup"
	CommandVerify   = "verify"

	SubcommandPost     = "post"
	SubcommandList     = "list"
	SubcommandSync     = "sync"
	SubcommandDelegate = "delegate"

	OptionProposalID = "proposal_id"
	OptionChannel    = "channel"
)

var manageGuild int64 = discordgo.PermissionManageGuild

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandProposal: {
		Name:                     CommandProposal,
		Description:              "Manage governance proposal threads",
		DefaultMemberPermissions: &manageGuild,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandPost,
				Description: "Post one proposal to the forum",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        OptionProposalID,
						Description: "gov_action id or txHash#index",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandList,
				Description: "List active proposals and whether they are posted",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandSync,
				Description: "Post every active proposal that is not in the forum yet",
			},
		},
	},
	CommandSetup: {
		Name:                     CommandSetup,
		Description:              "Configure the bot for this server",
		DefaultMemberPermissions: &manageGuild,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubcommandDelegate,
				Description: "Post the delegator verification panel",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         OptionChannel,
						Description:  "Channel for the panel (defaults to this one)",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				},
			},
		},
	},
	CommandVerify: {
		Name:        CommandVerify,
		Description: "Verify your delegation to this DRep",
	},
}

var defaultCommandOrder = []string{CommandProposal, CommandSetup, CommandVerify}

// CommandCreator registers application commands; *discordgo.Session satisfies it.
type CommandCreator interface {
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
}

// commandDefinition returns the registered definition for name, or nil.
func commandDefinition(name string) *discordgo.ApplicationCommand {
	return commandDefinitions[name]
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s CommandCreator, appID, guildID string, log *zap.Logger, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition := commandDefinition(name)
		if definition == nil {
			log.Warn("unknown slash command", zap.String("command", name))
			continue
		}

		_, err := s.ApplicationCommandCreate(appID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Debug("slash command already registered", zap.String("command", name))
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Error("register slash command", zap.String("command", name), zap.Error(err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}

// SubcommandOptions returns the first subcommand of an application command
// and its options keyed by name.
func SubcommandOptions(data discordgo.ApplicationCommandInteractionData) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	opts := map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	if len(data.Options) == 0 {
		return "", opts
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		for _, o := range data.Options {
			opts[o.Name] = o
		}
		return "", opts
	}
	for _, o := range sub.Options {
		opts[o.Name] = o
	}
	return sub.Name, opts
}
