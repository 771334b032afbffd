package agent

import (
	"context"
	"errors"
	"strings"
)

const (
	replyContextOverflow = "That conversation has grown too long for me to process. Send /new to start a fresh session and try again."
	replyModelFailure    = "Sorry, something went wrong while I was thinking about that. Please try again."
)

var overflowPhrases = []string{
	"too long",
	"context length",
	"maximum context",
	"prompt is too long",
	"too many tokens",
}

// classifyModelError maps a provider failure to the user-facing reply and a
// short kind used for metrics.
func classifyModelError(err error) (reply, kind string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return replyModelFailure, "timeout"
	}
	msg := strings.ToLower(err.Error())
	for _, p := range overflowPhrases {
		if strings.Contains(msg, p) {
			return replyContextOverflow, "context_overflow"
		}
	}
	return replyModelFailure, "other"
}
