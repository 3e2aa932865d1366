package discord

import (
	"github.com/bwmarrin/discordgo"

	"cogbot/internal/ports/output"
)

const defaultEmbedColor = 0x5865F2

// BuildEmbed converts a platform-neutral embed. A zero color uses the
// default blurple.
func BuildEmbed(e *output.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	color := e.Color
	if color == 0 {
		color = defaultEmbedColor
	}
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       color,
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

// BuildEmbeds wraps BuildEmbed for the list-shaped discordgo fields.
func BuildEmbeds(e *output.Embed) []*discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{BuildEmbed(e)}
}
