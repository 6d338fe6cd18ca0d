package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"community-bot/internal/gateway"
	"community-bot/internal/gateway/gatewaytest"
)

const waitingRoom = int64(800)

func newTestApproval(t *testing.T, gw *gatewaytest.Fake) *ApprovalService {
	t.Helper()
	svc, err := NewApprovalService(gw, ApprovalConfig{
		GuildID:              testGuild,
		WaitingRoomChannelID: waitingRoom,
		UnapprovedRoleID:     unapproved,
		MemberRoleID:         memberRole,
		NewInTownRoleID:      newInTownRole,
		PronounPattern:       `\(.*/.*\)`,
	})
	require.NoError(t, err)
	return svc
}

func TestNewApprovalService_BadPattern(t *testing.T) {
	_, err := NewApprovalService(gatewaytest.New(), ApprovalConfig{PronounPattern: "("})
	assert.Error(t, err)
}

func TestApproval_Nickname(t *testing.T) {
	svc := newTestApproval(t, gatewaytest.New())

	nick, err := svc.Nickname(&gateway.Member{Username: "ann"}, "she/her")
	require.NoError(t, err)
	assert.Equal(t, "ann (she/her)", nick)

	nick, err = svc.Nickname(&gateway.Member{Username: "ann", Nick: "Annie (he/him)"}, "they/them")
	require.NoError(t, err)
	assert.Equal(t, "Annie (they/them)", nick)

	_, err = svc.Nickname(&gateway.Member{Username: strings.Repeat("x", 25)}, "they/them")
	assert.ErrorIs(t, err, ErrNicknameTooLong)
}

func TestNicknameProperty(t *testing.T) {
	svc := newTestApproval(t, gatewaytest.New())
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z ]{1,30}`).Draw(t, "name")
		pronouns := rapid.SampledFrom([]string{"she/her", "he/him", "they/them", "ze/zir"}).Draw(t, "pronouns")

		nick, err := svc.Nickname(&gateway.Member{Username: "user", Nick: name}, pronouns)
		if err != nil {
			return
		}
		if utf8.RuneCountInString(nick) > maxNicknameLength {
			t.Fatalf("nickname %q longer than %d", nick, maxNicknameLength)
		}
		if !svc.HasPronouns(nick) {
			t.Fatalf("nickname %q has no pronouns", nick)
		}
		// setting pronouns again replaces rather than stacks them
		again, err := svc.Nickname(&gateway.Member{Username: "user", Nick: nick}, pronouns)
		if err != nil || again != nick {
			t.Fatalf("re-applying pronouns changed %q to %q (%v)", nick, again, err)
		}
	})
}

func TestApproval_OnJoin(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddMember(&gateway.Member{UserID: 1, Username: "ann"})
	svc := newTestApproval(t, gw)

	require.NoError(t, svc.OnJoin(context.Background(), gw.Get(1)))
	assert.True(t, gw.Get(1).HasRole(unapproved))

	sent := gw.SentTo(waitingRoom)
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome, <@1>!", sent[0].Content)
	assert.Equal(t, "Welcome to Test Guild!", sent[0].Embed.Title)
	assert.Len(t, sent[0].Buttons, 4)
}

func TestApproval_SetPronounsThenUpdateApproves(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddMember(&gateway.Member{UserID: 1, Username: "ann", RoleIDs: []int64{unapproved}})
	svc := newTestApproval(t, gw)
	ctx := context.Background()

	_, err := svc.SetPronouns(ctx, 1, "she")
	assert.ErrorIs(t, err, ErrPronounFormat)

	before := gw.Get(1)
	nick, err := svc.SetPronouns(ctx, 1, "she/her")
	require.NoError(t, err)
	assert.Equal(t, "ann (she/her)", nick)

	approved, err := svc.OnMemberUpdate(ctx, before, gw.Get(1))
	require.NoError(t, err)
	assert.True(t, approved)

	m := gw.Get(1)
	assert.False(t, m.HasRole(unapproved))
	assert.True(t, m.HasRole(memberRole))
	assert.True(t, m.HasRole(newInTownRole))
	require.Len(t, gw.SentDMs(1), 1)
	assert.Contains(t, gw.SentDMs(1)[0].Content, "**Test Guild**")

	// a second update is a no-op
	approved, err = svc.OnMemberUpdate(ctx, nil, gw.Get(1))
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestApproval_SetPronounsTooLongSendsDM(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddMember(&gateway.Member{UserID: 1, Username: strings.Repeat("n", 30), RoleIDs: []int64{unapproved}})
	svc := newTestApproval(t, gw)

	_, err := svc.SetPronouns(context.Background(), 1, "they/them")
	assert.ErrorIs(t, err, ErrNicknameTooLong)
	assert.Empty(t, gw.Get(1).Nick)
	require.Len(t, gw.SentDMs(1), 1)
}

func TestApproval_UpdateIgnoresUnchangedNick(t *testing.T) {
	gw := gatewaytest.New()
	m := &gateway.Member{UserID: 1, Username: "ann", Nick: "ann (she/her)", RoleIDs: []int64{unapproved}}
	gw.AddMember(m)
	svc := newTestApproval(t, gw)

	approved, err := svc.OnMemberUpdate(context.Background(), gw.Get(1), gw.Get(1))
	require.NoError(t, err)
	assert.False(t, approved)
	assert.True(t, gw.Get(1).HasRole(unapproved))
}

func TestApproval_Enforce(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddMember(&gateway.Member{UserID: 1, Username: "ann", Nick: "ann (she/her)", RoleIDs: []int64{memberRole}})
	gw.AddMember(&gateway.Member{UserID: 2, Username: "bob", Nick: "bob", RoleIDs: []int64{memberRole}})
	gw.AddMember(&gateway.Member{UserID: 3, Username: "cat", RoleIDs: []int64{memberRole}})
	gw.AddMember(&gateway.Member{UserID: 4, Username: "bot", Bot: true, RoleIDs: []int64{memberRole}})
	gw.AddMember(&gateway.Member{UserID: 5, Username: "dan", RoleIDs: []int64{unapproved}})
	gw.DMErr[3] = gateway.ErrPermissionDenied
	svc := newTestApproval(t, gw)

	n, err := svc.Enforce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, gw.Get(1).HasRole(memberRole))
	for _, id := range []int64{2, 3} {
		assert.False(t, gw.Get(id).HasRole(memberRole))
		assert.True(t, gw.Get(id).HasRole(unapproved))
	}
	assert.True(t, gw.Get(4).HasRole(memberRole))
	assert.Len(t, gw.SentDMs(2), 1)
	assert.Empty(t, gw.SentDMs(3))
}

func TestPronounsFor(t *testing.T) {
	p, ok := PronounsFor("pronoun_they_them")
	assert.True(t, ok)
	assert.Equal(t, "they/them", p)

	_, ok = PronounsFor(PronounCustomID)
	assert.False(t, ok)
}
