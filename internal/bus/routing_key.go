package bus

import "strings"

func RoutingKey(channel ChannelType, chatID string) string {
	if chatID == "" {
		return string(channel)
	}

	return string(channel) + ":" + chatID
}

// ParseRoutingKey splits a routing key into channel and chat ID.
func ParseRoutingKey(key string) (channel ChannelType, chatID string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return ChannelType(key[:i]), key[i+1:]
	}

	return ChannelType(key), ""
}
