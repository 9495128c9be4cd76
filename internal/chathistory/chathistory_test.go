package chathistory

import "testing"

func TestBuildConversationRoles(t *testing.T) {
	t.Parallel()

	replies := []ThreadReply{
		{UserID: "U111", Text: "<@UBOT> what is the weather?"},
		{BotID: "B001", Text: "Sunny, 21C."},
		{UserID: "U111", Text: "and tomorrow?"},
	}
	conv := BuildConversation(replies, "UBOT")
	if len(conv) != 3 {
		t.Fatalf("len(conv) = %d, want 3", len(conv))
	}
	if conv[0].Role != "user" || conv[0].Content != "what is the weather?" {
		t.Fatalf("conv[0] = %+v", conv[0])
	}
	if conv[1].Role != "assistant" || conv[1].Content != "Sunny, 21C." {
		t.Fatalf("conv[1] = %+v", conv[1])
	}
	if conv[2].Role != "user" || conv[2].Content != "and tomorrow?" {
		t.Fatalf("conv[2] = %+v", conv[2])
	}
}

func TestBuildConversationDropsEmptyReplies(t *testing.T) {
	t.Parallel()

	replies := []ThreadReply{
		{UserID: "U111", Text: "  "},
		{UserID: "U111", Text: "hello"},
	}
	conv := BuildConversation(replies, "UBOT")
	if len(conv) != 1 {
		t.Fatalf("len(conv) = %d, want 1", len(conv))
	}
	if conv[0].Content != "hello" {
		t.Fatalf("conv[0].Content = %q", conv[0].Content)
	}
}

func TestStripMention(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"<@UBOT> build me a page", "build me a page"},
		{"hey <@UBOT> can you help", "hey can you help"},
		{"no mention at all", "no mention at all"},
		{"<@UOTHER> not ours", "<@UOTHER> not ours"},
	}
	for _, tc := range cases {
		if got := StripMention(tc.in, "UBOT"); got != tc.want {
			t.Fatalf("StripMention(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
