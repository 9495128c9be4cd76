// Package chathistory turns a Slack thread into the ordered conversation the
// response engine feeds to the model.
package chathistory

import (
	"strings"

	"github.com/steadylabs/briefbot/llm"
)

// ThreadReply is one message of a Slack thread in chronological order.
type ThreadReply struct {
	UserID string
	BotID  string
	Text   string
}

// BuildConversation maps thread replies to role-tagged messages. A reply
// carrying a bot_id is the assistant; everything else is the user. The role is
// assigned here once and never reclassified downstream. Empty-text replies
// (joins, file shares) are dropped; the bot mention token is stripped from
// user text.
func BuildConversation(replies []ThreadReply, botUserID string) []llm.Message {
	out := make([]llm.Message, 0, len(replies))
	for _, reply := range replies {
		text := strings.TrimSpace(reply.Text)
		if text == "" {
			continue
		}
		if strings.TrimSpace(reply.BotID) != "" {
			out = append(out, llm.Message{Role: "assistant", Content: text})
			continue
		}
		out = append(out, llm.Message{Role: "user", Content: StripMention(text, botUserID)})
	}
	return out
}

// StripMention removes the leading <@BOTID> token (and one following space)
// from user text so the model never sees its own mention.
func StripMention(text, botUserID string) string {
	botUserID = strings.TrimSpace(botUserID)
	if botUserID == "" {
		return text
	}
	mention := "<@" + botUserID + ">"
	if !strings.Contains(text, mention) {
		return text
	}
	text = strings.Replace(text, mention+" ", "", 1)
	text = strings.Replace(text, mention, "", 1)
	return strings.TrimSpace(text)
}
