package archive

import "time"

// Channel type tags stored in Channels.type.
const (
	TypeText     = "TextChannel"
	TypeVoice    = "VoiceChannel"
	TypeCategory = "CategoryChannel"
	TypeNews     = "NewsChannel"
	TypeStage    = "StageChannel"
	TypeForum    = "ForumChannel"
	TypeMedia    = "MediaChannel"
	TypeUnknown  = "UnknownChannel"
)

type Guild struct {
	ID      uint64  `gorm:"primaryKey;autoIncrement:false"`
	Name    string  `gorm:"size:100;not null"`
	IconURL *string `gorm:"size:512"`
}

func (Guild) TableName() string { return "Guilds" }

type Channel struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement:false"`
	Name       string  `gorm:"size:100;not null"`
	Type       string  `gorm:"size:32;not null"`
	GuildID    uint64  `gorm:"not null;index"`
	CategoryID *uint64 `gorm:"column:category"`

	Guild *Guild `json:"-"`
}

func (Channel) TableName() string { return "Channels" }

// HoldsMessages reports whether the channel has its own message history.
// Categories and forums only contain other containers.
func (c Channel) HoldsMessages() bool {
	switch c.Type {
	case TypeText, TypeNews, TypeVoice, TypeStage:
		return true
	}
	return false
}

// HoldsThreads reports whether threads can be started under the channel.
func (c Channel) HoldsThreads() bool {
	switch c.Type {
	case TypeText, TypeNews, TypeForum, TypeMedia:
		return true
	}
	return false
}

type Thread struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:100;not null"`
	GuildID   uint64 `gorm:"not null;index"`
	ChannelID uint64 `gorm:"not null;index"`

	Guild   *Guild   `json:"-"`
	Channel *Channel `json:"-"`
}

func (Thread) TableName() string { return "Threads" }

type User struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement:false"`
	Name          string  `gorm:"size:100;not null"`
	Discriminator string  `gorm:"size:4;not null"`
	AvatarURL     *string `gorm:"size:512"`
}

func (User) TableName() string { return "Users" }

// Message.ChannelID is the id of the container the message was posted in, a channel or a thread.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false"`
	Content   string    `gorm:"type:text"`
	GuildID   uint64    `gorm:"not null;index"`
	ChannelID uint64    `gorm:"not null;index"`
	AuthorID  uint64    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	EditedAt  *time.Time

	Guild  *Guild `json:"-"`
	Author *User  `json:"-" gorm:"foreignKey:AuthorID"`
}

func (Message) TableName() string { return "Messages" }

type Attachment struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement:false"`
	MessageID   uint64  `gorm:"not null;index"`
	Filename    string  `gorm:"size:255;not null"`
	ContentType *string `gorm:"size:255"`
	Content     []byte  `gorm:"type:longblob"`

	Message *Message `json:"-"`
}

func (Attachment) TableName() string { return "MessageAttachments" }

// Tables lists every archived model in dependency order.
func Tables() []any {
	return []any{&Guild{}, &Channel{}, &Thread{}, &User{}, &Message{}, &Attachment{}}
}
