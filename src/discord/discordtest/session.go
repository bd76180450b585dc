// Package discordtest provides an in-memory discord.Session for tests.
package discordtest

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Thread is a forum thread created through the fake.
type Thread struct {
	ForumID string
	Start   discordgo.ThreadStart
	Message discordgo.MessageSend
}

// Session records every call. Fail* fields inject errors; Fail* funcs take
// precedence when set.
type Session struct {
	mu sync.Mutex

	Channels map[string]*discordgo.Channel
	Messages map[string]*discordgo.Message
	Members  map[string]*discordgo.Member

	Threads    []Thread
	Sent       map[string][]*discordgo.MessageSend
	Responses  []*discordgo.InteractionResponse
	Edits      []*discordgo.WebhookEdit
	Followups  []*discordgo.WebhookParams
	RolesAdded []string

	FailThread  func(title string) error
	FailSend    error
	FailRoleAdd error
	FailRespond error

	nextID int
}

func New() *Session {
	return &Session{
		Channels: map[string]*discordgo.Channel{},
		Messages: map[string]*discordgo.Message{},
		Members:  map[string]*discordgo.Member{},
		Sent:     map[string][]*discordgo.MessageSend{},
	}
}

func (s *Session) id() string {
	s.nextID++
	return fmt.Sprintf("%d", 1000+s.nextID)
}

func notFound(what string) error {
	return fmt.Errorf("HTTP 404 Not Found, %s", what)
}

func (s *Session) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.Channels[channelID]; ok {
		return ch, nil
	}
	return nil, notFound("channel " + channelID)
}

func (s *Session) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.Messages[messageID]; ok && m.ChannelID == channelID {
		return m, nil
	}
	return nil, notFound("message " + messageID)
}

func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSend != nil {
		return nil, s.FailSend
	}
	s.Sent[channelID] = append(s.Sent[channelID], data)
	return &discordgo.Message{ID: s.id(), ChannelID: channelID, Content: data.Content, Embeds: data.Embeds}, nil
}

func (s *Session) ForumThreadStartComplex(channelID string, threadData *discordgo.ThreadStart, messageData *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailThread != nil {
		if err := s.FailThread(threadData.Name); err != nil {
			return nil, err
		}
	}
	s.Threads = append(s.Threads, Thread{ForumID: channelID, Start: *threadData, Message: *messageData})
	id := s.id()
	// The starter message of a forum thread shares the thread's id.
	s.Messages[id] = &discordgo.Message{ID: id, ChannelID: id, Embeds: messageData.Embeds, Components: messageData.Components}
	return &discordgo.Channel{ID: id, ParentID: channelID, Name: threadData.Name, Type: discordgo.ChannelTypeGuildPublicThread}, nil
}

func (s *Session) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.Members[guildID+"/"+userID]; ok {
		return m, nil
	}
	return nil, notFound("member " + userID)
}

func (s *Session) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRoleAdd != nil {
		return s.FailRoleAdd
	}
	s.RolesAdded = append(s.RolesAdded, guildID+"/"+userID+"/"+roleID)
	key := guildID + "/" + userID
	m, ok := s.Members[key]
	if !ok {
		m = &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}}
		s.Members[key] = m
	}
	m.Roles = append(m.Roles, roleID)
	return nil
}

func (s *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRespond != nil {
		return s.FailRespond
	}
	s.Responses = append(s.Responses, resp)
	return nil
}

func (s *Session) InteractionResponseEdit(_ *discordgo.Interaction, newresp *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Edits = append(s.Edits, newresp)
	return &discordgo.Message{ID: s.id()}, nil
}

func (s *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Followups = append(s.Followups, data)
	return &discordgo.Message{ID: s.id(), Content: data.Content}, nil
}

// AddMember registers a guild member with the given roles.
func (s *Session) AddMember(guildID, userID string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Members[guildID+"/"+userID] = &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}, Roles: roles}
}

// ThreadTitles lists created thread names in creation order.
func (s *Session) ThreadTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Threads))
	for _, th := range s.Threads {
		out = append(out, th.Start.Name)
	}
	return out
}

// LastResponse returns the most recent interaction response, or nil.
func (s *Session) LastResponse() *discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return nil
	}
	return s.Responses[len(s.Responses)-1]
}
