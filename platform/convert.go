package platform

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-archiver/archive"
	"github.com/fuad-daoud/discord-archiver/archiver"
)

func channelType(t discord.ChannelType) string {
	switch t {
	case discord.ChannelTypeGuildText:
		return archive.TypeText
	case discord.ChannelTypeGuildVoice:
		return archive.TypeVoice
	case discord.ChannelTypeGuildCategory:
		return archive.TypeCategory
	case discord.ChannelTypeGuildNews:
		return archive.TypeNews
	case discord.ChannelTypeGuildStageVoice:
		return archive.TypeStage
	case discord.ChannelTypeGuildForum:
		return archive.TypeForum
	case discord.ChannelTypeGuildMedia:
		return archive.TypeMedia
	}
	return archive.TypeUnknown
}

func isThread(t discord.ChannelType) bool {
	switch t {
	case discord.ChannelTypeGuildNewsThread, discord.ChannelTypeGuildPublicThread, discord.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

func optionalID(id *snowflake.ID) *uint64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := uint64(*id)
	return &v
}

func toGuild(guild discord.Guild) archive.Guild {
	return archive.Guild{
		ID:      uint64(guild.ID),
		Name:    guild.Name,
		IconURL: guild.IconURL(),
	}
}

func toChannel(channel discord.GuildChannel) archive.Channel {
	return archive.Channel{
		ID:         uint64(channel.ID()),
		Name:       channel.Name(),
		Type:       channelType(channel.Type()),
		GuildID:    uint64(channel.GuildID()),
		CategoryID: optionalID(channel.ParentID()),
	}
}

func toThread(thread discord.GuildChannel) archive.Thread {
	var parent uint64
	if id := thread.ParentID(); id != nil {
		parent = uint64(*id)
	}
	return archive.Thread{
		ID:        uint64(thread.ID()),
		Name:      thread.Name(),
		GuildID:   uint64(thread.GuildID()),
		ChannelID: parent,
	}
}

func toUser(user discord.User) archive.User {
	return archive.User{
		ID:            uint64(user.ID),
		Name:          user.Username,
		Discriminator: user.Discriminator,
		AvatarURL:     user.AvatarURL(),
	}
}

// SnapshotOf converts a platform message. Attachments are referenced, not downloaded.
func SnapshotOf(message discord.Message) archiver.Snapshot {
	snapshot := archiver.Snapshot{
		Message: archive.Message{
			ID:        uint64(message.ID),
			Content:   message.Content,
			ChannelID: uint64(message.ChannelID),
			AuthorID:  uint64(message.Author.ID),
			CreatedAt: message.CreatedAt,
			EditedAt:  message.EditedTimestamp,
		},
		Author: toUser(message.Author),
	}
	if message.GuildID != nil {
		snapshot.Message.GuildID = uint64(*message.GuildID)
	}
	for _, attachment := range message.Attachments {
		snapshot.Attachments = append(snapshot.Attachments, archiver.AttachmentRef{
			ID:          uint64(attachment.ID),
			MessageID:   uint64(message.ID),
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
			URL:         attachment.URL,
		})
	}
	return snapshot
}
