package platform

import (
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"golang.org/x/net/context"
)

// Notifier sends status notes to the bot owner by direct message.
// A zero owner turns it into a no-op.
type Notifier struct {
	rest  rest.Rest
	owner snowflake.ID
}

func NewNotifier(rest rest.Rest, owner snowflake.ID) *Notifier {
	return &Notifier{rest: rest, owner: owner}
}

func statusMessage(status string, now time.Time) discord.MessageCreate {
	return discord.MessageCreate{
		Content: "Bot Status Notification",
		Embeds: []discord.Embed{
			discord.NewEmbedBuilder().
				AddField("Status", status, false).
				SetFooterText(now.Format(time.DateTime)).
				Build(),
		},
	}
}

func (n *Notifier) Notify(ctx context.Context, status string) error {
	if n == nil || n.owner == 0 {
		return nil
	}
	dm, err := n.rest.CreateDMChannel(n.owner, rest.WithCtx(ctx))
	if err != nil {
		return err
	}
	_, err = n.rest.CreateMessage(dm.ID(), statusMessage(status, time.Now()), rest.WithCtx(ctx))
	return err
}

// notify is Notify for call sites that only log failures.
func (n *Notifier) notify(ctx context.Context, status string) {
	if err := n.Notify(ctx, status); err != nil {
		dlog.Warn("Could not notify owner", "status", status, "err", err)
	}
}
