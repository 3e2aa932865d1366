package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"cogbot/internal/ports/output"
)

// BuildCommands converts command specs into string-option slash commands.
func BuildCommands(specs []output.CommandSpec) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmd := &discordgo.ApplicationCommand{
			Name:        spec.Name,
			Description: spec.Description,
		}
		for _, opt := range spec.Options {
			o := &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			}
			for _, choice := range opt.Choices {
				o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
			}
			cmd.Options = append(cmd.Options, o)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// FlattenOptions maps option names to their values. Subcommand names are
// stored under "subcommand" and their options are flattened alongside.
func FlattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	out := make(map[string]string, len(opts))
	flatten(opts, out)
	return out
}

func flatten(opts []*discordgo.ApplicationCommandInteractionDataOption, out map[string]string) {
	for _, opt := range opts {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			out["subcommand"] = opt.Name
			flatten(opt.Options, out)
		case discordgo.ApplicationCommandOptionString:
			out[opt.Name] = opt.StringValue()
		default:
			out[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
}
