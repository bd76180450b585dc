package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/errors"
)

// HasRole checks whether a user has a role in a guild. Empty roleID always returns true.
func HasRole(ctx context.Context, s Session, guildID, userID, roleID string) bool {
	if roleID == "" {
		return true
	}
	member, err := s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// GrantRole adds roleID to the member unless they already hold it.
func GrantRole(ctx context.Context, s Session, guildID, userID, roleID string) error {
	if roleID == "" {
		return errors.NotValidf("empty role id")
	}
	if HasRole(ctx, s, guildID, userID, roleID) {
		return nil
	}
	return errors.Annotatef(s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)),
		"grant role %s to %s", roleID, userID)
}
