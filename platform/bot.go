package platform

import (
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
)

// NewClient builds the gateway client with the intents archival needs and h's listeners.
func NewClient(token string, h *Handlers) (bot.Client, error) {
	return disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
				gateway.IntentDirectMessages,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels),
		),
		bot.WithEventListenerFunc(h.OnReady),
		bot.WithEventListenerFunc(h.OnMessageCreate),
		bot.WithEventListenerFunc(h.OnMessageUpdate),
		bot.WithEventListenerFunc(h.OnCommand),
	)
}
