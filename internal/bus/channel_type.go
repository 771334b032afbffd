package bus

type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelSlack    ChannelType = "slack"
	ChannelWebChat  ChannelType = "webchat"
	ChannelCLI      ChannelType = "cli"
	ChannelSchedule ChannelType = "schedule"
)

const (
	ChatIDDirect = "direct"
	SenderIDCLI  = "user"
)
