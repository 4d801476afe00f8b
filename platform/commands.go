package platform

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
)

const (
	commandGetAll = "get_all"
	commandStatus = "archive_status"
)

var commands = []discord.ApplicationCommandCreate{
	discord.SlashCommandCreate{
		Name:        commandGetAll,
		Description: "Archive every channel, thread and message of this server",
	},
	discord.SlashCommandCreate{
		Name:        commandStatus,
		Description: "Show how many rows the archive holds",
	},
}

// RegisterCommands replaces the application's global slash commands.
func RegisterCommands(rest rest.Rest, applicationID snowflake.ID) error {
	registered, err := rest.SetGlobalCommands(applicationID, commands)
	if err != nil {
		dlog.Error("Could not register commands", "err", err)
		return err
	}
	dlog.Info("Registered commands", "count", len(registered))
	return nil
}
