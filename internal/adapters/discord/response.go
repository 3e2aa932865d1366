package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"cogbot/internal/ports/output"
	pkgdiscord "cogbot/pkg/discord"
)

// Nick > GlobalName > Username
func resolveDisplayName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

// interactionReplier answers an interaction. The first reply is the
// interaction response; later ones are follow-up messages.
type interactionReplier struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

func newInteractionReplier(s *discordgo.Session, i *discordgo.Interaction) *interactionReplier {
	return &interactionReplier{session: s, interaction: i}
}

func (r *interactionReplier) Reply(ctx context.Context, resp output.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flags discordgo.MessageFlags
	if resp.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	embeds := pkgdiscord.BuildEmbeds(resp.Embed)

	if r.responded {
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content: resp.Content,
			Embeds:  embeds,
			Flags:   flags,
		}, discordgo.WithContext(ctx))
		return err
	}

	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: resp.Content,
			Embeds:  embeds,
			Flags:   flags,
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.responded = true
	}
	return err
}
