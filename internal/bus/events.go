package bus

import "time"

// EmbedField is a name/value pair inside a rich-content block.
type EmbedField struct {
	Name  string
	Value string
}

// Embed is a rich-content block attached to a message.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	ImageName   string
	ThumbName   string
}

type InboundMessage struct {
	Channel     string
	SenderID    string
	ChatID      string
	Content     string
	Timestamp   time.Time
	Embeds      []Embed
	Attachments []string // filenames only
	Automation  bool     // authored by a bot/webhook rather than a person
	Metadata    map[string]any
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	ReplyTo string
}
