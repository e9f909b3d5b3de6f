package server

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		lines []string
	}{
		{"pass first", []string{"PASS secret", "NICK alice", "USER alice 0 * :Alice"}},
		{"pass last", []string{"NICK alice", "USER alice 0 * :Alice", "PASS secret"}},
		{"user before nick", []string{"PASS secret", "USER alice 0 * :Alice", "NICK alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession(srv)
			defer srv.removeSession(sess, "done")

			run(srv, sess, tt.lines...)
			assert.True(t, sess.Registered())
			events := parse(t, output(sess))
			require.Len(t, events, 1, "Welcome is sent exactly once")
			assert.Equal(t, "001", events[0].Command)
		})
	}
}

func TestCommandsBeforeRegistrationIgnored(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := newSession(srv)

	run(srv, sess, "JOIN #room", "PRIVMSG bob :hi", "MODE #room +i", "NOTICE bob :hi")
	assert.Empty(t, output(sess))
	assert.Zero(t, srv.ChannelCount())
}

func TestPassErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	sess := newSession(srv)
	run(srv, sess, "PASS")
	assert.Equal(t, []string{":irc.test 461 * PASS :Not enough parameters"}, output(sess))
	assert.False(t, sess.Closing())

	alice := register(t, srv, "alice")
	run(srv, alice, "PASS "+testPassword)
	assert.Equal(t, []string{":irc.test 462 alice :Unauthorized command (already registered)"}, output(alice))
}

func TestPassMismatchCloses(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := newSession(srv)

	run(srv, sess, "PASS nope", "NICK bob")
	assert.True(t, sess.Closing())
	assert.False(t, sess.PassAccepted())
	assert.Empty(t, sess.Nick(), "Lines after a failed PASS are not processed")
	assert.Equal(t, []string{":irc.test 464 * :Password incorrect"}, output(sess))
}

func TestNickErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "alice")
	sess := newSession(srv)

	run(srv, sess, "NICK")
	run(srv, sess, "NICK bad!nick")
	run(srv, sess, "NICK alice")

	assert.Equal(t, []string{
		":irc.test 431 * :No nickname given",
		":irc.test 432 * bad!nick :Erroneous nickname",
		":irc.test 433 * alice :Nickname is already in use",
	}, output(sess))
}

func TestNickInUseKeepsFirstIdentity(t *testing.T) {
	srv, _ := newTestServer(t)
	first := register(t, srv, "dup")

	second := newSession(srv)
	run(srv, second, loginLines("dup")...)

	assert.False(t, second.Registered())
	assert.Equal(t, "dup", first.Nick())
	assert.Same(t, first, srv.SessionByNick("dup"))
	events := parse(t, output(second))
	require.Len(t, events, 1)
	assert.Equal(t, "433", events[0].Command)
}

func TestNickHeldDuringHandshake(t *testing.T) {
	srv, _ := newTestServer(t)

	pending := newSession(srv)
	run(srv, pending, "NICK carol")
	assert.Nil(t, srv.SessionByNick("carol"), "Unregistered sessions are not addressable")

	other := newSession(srv)
	run(srv, other, "NICK carol")
	assert.Equal(t, []string{":irc.test 433 * carol :Nickname is already in use"}, output(other))

	srv.removeSession(pending, "gone")
	run(srv, other, "NICK carol")
	assert.Empty(t, output(other))
	assert.Equal(t, "carol", other.Nick())
}

func TestNickChangeNotifiesPeersOnce(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	observer := register(t, srv, "obs")
	loner := register(t, srv, "loner")

	run(srv, alice, "JOIN #x,#y")
	run(srv, observer, "JOIN #x,#y")
	output(alice)
	output(observer)

	run(srv, alice, "NICK alicia")

	want := ":alice!alice@127.0.0.1 NICK :alicia"
	assert.Equal(t, []string{want}, output(alice))
	assert.Equal(t, []string{want}, output(observer))
	assert.Empty(t, output(loner))
	assert.Same(t, alice, srv.SessionByNick("alicia"))
	assert.Nil(t, srv.SessionByNick("alice"))

	run(srv, alice, "NICK alicia")
	assert.Empty(t, output(alice), "Changing to the current nick is a no-op")
}

func TestUserErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	sess := newSession(srv)
	run(srv, sess, "USER only three params")
	assert.Equal(t, []string{":irc.test 461 * USER :Not enough parameters"}, output(sess))

	alice := register(t, srv, "alice")
	run(srv, alice, "USER again 0 * :Again")
	assert.Equal(t, []string{":irc.test 462 alice :Unauthorized command (already registered)"}, output(alice))
	assert.Equal(t, "alice", alice.Identity.Username)
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := newSession(srv)

	run(srv, sess, "PING :token with spaces", "PING")
	assert.Equal(t, []string{
		":irc.test PONG irc.test :token with spaces",
		":irc.test 461 * PING :Not enough parameters",
	}, output(sess))

	before := sess.LastActivity
	run(srv, sess, "PONG irc.test")
	assert.Empty(t, output(sess))
	assert.False(t, sess.LastActivity.Before(before))
}

func TestJoinCreatesChannelsIndependently(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")

	run(srv, alice, "JOIN #a,#b key1,key2")

	for _, name := range []string{"#a", "#b"} {
		ch := srv.Channel(name)
		require.NotNil(t, ch, name)
		assert.Equal(t, []string{alice.ID}, ch.Members())
		assert.True(t, ch.IsOperator(alice.ID))
		assert.False(t, ch.HasMode('k'), "Keys supplied to a new channel are not applied")
	}
	assert.Equal(t, []string{"#a", "#b"}, alice.Identity.Channels())

	assert.Equal(t, []string{
		":alice!alice@127.0.0.1 JOIN #a",
		":irc.test 331 alice #a :No topic is set",
		":irc.test 353 alice = #a :@alice",
		":irc.test 366 alice #a :End of /NAMES list",
		":alice!alice@127.0.0.1 JOIN #b",
		":irc.test 331 alice #b :No topic is set",
		":irc.test 353 alice = #b :@alice",
		":irc.test 366 alice #b :End of /NAMES list",
	}, output(alice))
}

func TestJoinNormalizesNameAndSkipsMembers(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")

	run(srv, alice, "JOIN room,,&local")
	assert.NotNil(t, srv.Channel("#room"))
	assert.NotNil(t, srv.Channel("&local"))
	output(alice)

	run(srv, alice, "JOIN #room")
	assert.Empty(t, output(alice), "Joining a channel twice is silent")
}

func TestJoinBroadcastsOnceToEveryone(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #room")
	output(alice)

	run(srv, bob, "JOIN #room")

	join := ":bob!bob@127.0.0.1 JOIN #room"
	assert.Equal(t, []string{join}, output(alice))
	events := parse(t, output(bob))
	assert.Equal(t, []string{"JOIN", "331", "353", "366"}, commands(events))
	assert.Equal(t, "@alice bob", events[2].Last())
	assert.False(t, srv.Channel("#room").IsOperator(bob.ID))
}

func TestJoinChecksInOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	op := register(t, srv, "op")
	bob := register(t, srv, "bob")

	run(srv, op, "JOIN #locked", "MODE #locked +ikl secret 1")
	output(op)

	run(srv, bob, "JOIN #locked")
	assert.Equal(t, []string{":irc.test 473 bob #locked :Cannot join channel (+i)"}, output(bob))

	run(srv, op, "INVITE bob #locked")
	output(op)
	output(bob)
	run(srv, bob, "JOIN #locked wrong")
	assert.Equal(t, []string{":irc.test 475 bob #locked :Cannot join channel (+k)"}, output(bob))

	run(srv, bob, "JOIN #locked secret")
	assert.Equal(t, []string{":irc.test 471 bob #locked :Cannot join channel (+l)"}, output(bob))

	run(srv, op, "MODE #locked -l")
	output(op)
	run(srv, bob, "JOIN #locked secret")
	assert.True(t, srv.Channel("#locked").IsMember(bob.ID))
	assert.False(t, srv.Channel("#locked").IsInvited("bob"), "Joining consumes the invite")
}

func TestJoinPartialSuccess(t *testing.T) {
	srv, _ := newTestServer(t)
	op := register(t, srv, "op")
	bob := register(t, srv, "bob")

	run(srv, op, "JOIN #closed", "MODE #closed +i")
	output(op)

	run(srv, bob, "JOIN #closed,#open")
	events := parse(t, output(bob))
	assert.Equal(t, []string{"473", "JOIN", "331", "353", "366"}, commands(events))
	assert.True(t, srv.Channel("#open").IsMember(bob.ID))
}

func TestPart(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #room")
	run(srv, bob, "JOIN #room")
	output(alice)
	output(bob)

	run(srv, bob, "PART #room,#missing,#other")
	part := ":bob!bob@127.0.0.1 PART #room :Leaving"
	assert.Equal(t, []string{part}, output(alice))
	assert.Equal(t, []string{
		part,
		":irc.test 403 bob #missing :No such channel",
		":irc.test 403 bob #other :No such channel",
	}, output(bob))
	assert.Empty(t, bob.Identity.Channels())

	run(srv, bob, "PART #room")
	assert.Equal(t, []string{":irc.test 442 bob #room :You're not on that channel"}, output(bob))

	run(srv, bob, "PART")
	assert.Equal(t, []string{":irc.test 461 bob PART :Not enough parameters"}, output(bob))
}

func TestEmptyChannelIsRecreatedFresh(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #reset", "TOPIC #reset :old topic", "MODE #reset +itk key")
	run(srv, alice, "PART #reset :bye")
	require.Nil(t, srv.Channel("#reset"))

	run(srv, bob, "JOIN #reset")
	ch := srv.Channel("#reset")
	require.NotNil(t, ch)
	assert.True(t, ch.IsOperator(bob.ID))
	assert.Empty(t, ch.Topic)
	assert.Equal(t, "+", ch.ModeString())
}

func TestKickEmptiesAndDestroysChannel(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #k")
	run(srv, bob, "JOIN #k")
	output(alice)
	output(bob)

	run(srv, bob, "KICK #k alice")
	assert.Equal(t, []string{":irc.test 482 bob #k :You're not channel operator"}, output(bob))

	run(srv, alice, "KICK #k carol", "KICK #nope bob", "KICK #k")
	assert.Equal(t, []string{
		":irc.test 441 alice carol #k :They aren't on that channel",
		":irc.test 403 alice #nope :No such channel",
		":irc.test 461 alice KICK :Not enough parameters",
	}, output(alice))

	run(srv, alice, "KICK #k bob :behave")
	kick := ":alice!alice@127.0.0.1 KICK #k bob :behave"
	assert.Equal(t, []string{kick}, output(alice))
	assert.Equal(t, []string{kick}, output(bob))
	assert.False(t, srv.Channel("#k").IsMember(bob.ID))
	assert.False(t, bob.Identity.InChannel("#k"))

	run(srv, alice, "KICK #k alice")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 KICK #k alice :Kicked"}, output(alice))
	assert.Nil(t, srv.Channel("#k"))
}

func TestTopic(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #t")
	run(srv, bob, "JOIN #t")
	output(alice)
	output(bob)

	run(srv, bob, "TOPIC #t")
	assert.Equal(t, []string{":irc.test 331 bob #t :No topic is set"}, output(bob))

	run(srv, bob, "TOPIC #t :hello world")
	topic := ":bob!bob@127.0.0.1 TOPIC #t :hello world"
	assert.Equal(t, []string{topic}, output(bob))
	assert.Equal(t, []string{topic}, output(alice))
	assert.Equal(t, "bob", srv.Channel("#t").TopicSetBy)

	run(srv, alice, "MODE #t +t")
	output(alice)
	output(bob)

	run(srv, bob, "TOPIC #t :nope")
	assert.Equal(t, []string{":irc.test 482 bob #t :You're not channel operator"}, output(bob))
	run(srv, bob, "TOPIC #t")
	assert.Equal(t, []string{":irc.test 332 bob #t :hello world"}, output(bob))

	run(srv, bob, "TOPIC #none", "TOPIC")
	assert.Equal(t, []string{
		":irc.test 403 bob #none :No such channel",
		":irc.test 461 bob TOPIC :Not enough parameters",
	}, output(bob))
}

func TestInvite(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	carol := register(t, srv, "carol")

	run(srv, alice, "JOIN #inv")
	run(srv, bob, "JOIN #inv")
	run(srv, alice, "MODE #inv +i")
	output(alice)
	output(bob)

	run(srv, carol, "INVITE bob #inv")
	assert.Equal(t, []string{":irc.test 442 carol #inv :You're not on that channel"}, output(carol))

	run(srv, bob, "INVITE carol #inv")
	assert.Equal(t, []string{":irc.test 482 bob #inv :You're not channel operator"}, output(bob))

	run(srv, alice, "INVITE bob #inv", "INVITE nobody #inv", "INVITE carol")
	assert.Equal(t, []string{
		":irc.test 443 alice bob #inv :is already on channel",
		":irc.test 401 alice nobody :No such nick/channel",
		":irc.test 461 alice INVITE :Not enough parameters",
	}, output(alice))
	assert.False(t, srv.Channel("#inv").IsInvited("nobody"))

	run(srv, alice, "INVITE carol #inv")
	assert.Equal(t, []string{":irc.test 341 alice carol #inv"}, output(alice))
	assert.Equal(t, []string{":alice!alice@127.0.0.1 INVITE carol #inv"}, output(carol))
	assert.True(t, srv.Channel("#inv").IsInvited("carol"))

	run(srv, alice, "INVITE carol #nowhere")
	assert.Equal(t, []string{":irc.test 341 alice carol #nowhere"}, output(alice))
	assert.Nil(t, srv.Channel("#nowhere"))
}

func TestUserMode(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	register(t, srv, "bob")

	run(srv, alice, "MODE alice")
	assert.Equal(t, []string{":irc.test 221 alice +"}, output(alice))

	run(srv, alice, "MODE alice +i")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE alice :+i"}, output(alice))
	assert.True(t, alice.Identity.Modes.Invisible)

	run(srv, alice, "MODE alice +i")
	assert.Empty(t, output(alice), "Unchanged flags are not confirmed")

	run(srv, alice, "MODE alice -i+i-i")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE alice :-i+i-i"}, output(alice))

	run(srv, alice, "MODE alice +xw")
	assert.Equal(t, []string{":irc.test 501 alice :Unknown MODE flag"}, output(alice))

	run(srv, alice, "MODE bob +i", "MODE")
	assert.Equal(t, []string{
		":irc.test 502 alice :Cannot change mode for other users",
		":irc.test 461 alice MODE :Not enough parameters",
	}, output(alice))
}

func TestChannelModeQueryAndPrivilege(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #m")
	run(srv, bob, "JOIN #m")
	output(alice)
	output(bob)

	run(srv, bob, "MODE #m")
	assert.Equal(t, []string{":irc.test 324 bob #m +"}, output(bob))

	run(srv, bob, "MODE #m +t", "MODE #none +t")
	assert.Equal(t, []string{
		":irc.test 482 bob #m :You're not channel operator",
		":irc.test 403 bob #none :No such channel",
	}, output(bob))

	run(srv, alice, "MODE #m +itkl pw 5")
	prefix := ":alice!alice@127.0.0.1 MODE #m "
	assert.Equal(t, []string{prefix + "+i", prefix + "+t", prefix + "+k pw", prefix + "+l 5"}, output(bob))
	output(alice)

	run(srv, bob, "MODE #m")
	assert.Equal(t, []string{":irc.test 324 bob #m +itkl pw 5"}, output(bob))
}

func TestChannelModeOperator(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	register(t, srv, "carol")

	run(srv, alice, "JOIN #o")
	run(srv, bob, "JOIN #o")
	output(alice)
	output(bob)

	run(srv, alice, "MODE #o +o carol")
	assert.Equal(t, []string{":irc.test 441 alice carol #o :They aren't on that channel"}, output(alice))

	run(srv, alice, "MODE #o +o bob")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE #o +o bob"}, output(bob))
	assert.True(t, srv.Channel("#o").IsOperator(bob.ID))
	output(alice)

	run(srv, bob, "MODE #o -o alice")
	assert.Equal(t, []string{":bob!bob@127.0.0.1 MODE #o -o alice"}, output(alice))
	output(bob)
	assert.False(t, srv.Channel("#o").IsOperator(alice.ID))

	run(srv, bob, "MODE #o +o")
	assert.Empty(t, output(bob), "A flag without its parameter is skipped")
}

func TestChannelModeKey(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	run(srv, alice, "JOIN #key")
	output(alice)

	run(srv, alice, "MODE #key +k newkey")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE #key +k newkey"}, output(alice))

	run(srv, alice, "MODE #key -k wrongkey")
	assert.Equal(t, []string{":irc.test 467 alice #key :Channel key already set"}, output(alice))
	assert.Equal(t, "newkey", srv.Channel("#key").Modes.Key)

	run(srv, alice, "MODE #key -k newkey")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE #key -k"}, output(alice))
	assert.False(t, srv.Channel("#key").HasMode('k'))

	run(srv, alice, "MODE #key -k anything", "MODE #key -k", "MODE #key +k")
	assert.Empty(t, output(alice))

	run(srv, alice, "MODE #key +k :has space")
	assert.Equal(t, []string{":irc.test 525 alice #key :Key is not well-formed"}, output(alice))
	assert.False(t, srv.Channel("#key").HasMode('k'))
}

func TestChannelModeLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	run(srv, alice, "JOIN #lim")
	output(alice)

	run(srv, alice, "MODE #lim +l abc", "MODE #lim +l 0", "MODE #lim +l -3")
	assert.Empty(t, output(alice), "Invalid limits are skipped silently")
	assert.False(t, srv.Channel("#lim").HasMode('l'))

	run(srv, alice, "MODE #lim +l 2")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE #lim +l 2"}, output(alice))
	assert.Equal(t, 2, srv.Channel("#lim").Modes.UserLimit)

	run(srv, alice, "MODE #lim -l")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 MODE #lim -l"}, output(alice))
	assert.False(t, srv.Channel("#lim").HasMode('l'))
}

func TestChannelModeMixedRun(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	run(srv, alice, "JOIN #mix")
	output(alice)

	run(srv, alice, "MODE #mix +iz-t+l 3")
	prefix := ":alice!alice@127.0.0.1 MODE #mix "
	assert.Equal(t, []string{
		prefix + "+i",
		":irc.test 472 alice z :is unknown mode char to me",
		prefix + "-t",
		prefix + "+l 3",
	}, output(alice))
	assert.Equal(t, "+il 3", srv.Channel("#mix").ModeString())
}

func TestPrivmsg(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")
	carol := register(t, srv, "carol")

	run(srv, alice, "JOIN #chat")
	run(srv, bob, "JOIN #chat")
	output(alice)
	output(bob)

	run(srv, alice, "PRIVMSG #chat :hello there")
	assert.Empty(t, output(alice), "The sender does not get its own channel message")
	events := parse(t, output(bob))
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Source.Name)
	assert.Equal(t, []string{"#chat", "hello there"}, events[0].Params)
	assert.Empty(t, output(carol))

	run(srv, carol, "PRIVMSG #chat :outsider")
	assert.Equal(t, []string{":carol!carol@127.0.0.1 PRIVMSG #chat :outsider"}, output(alice))
	output(bob)

	run(srv, alice, "PRIVMSG carol :direct")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 PRIVMSG carol :direct"}, output(carol))
	assert.Empty(t, output(bob))

	run(srv, alice, "PRIVMSG #gone :x", "PRIVMSG ghost :x", "PRIVMSG carol")
	assert.Equal(t, []string{
		":irc.test 403 alice #gone :No such channel",
		":irc.test 401 alice ghost :No such nick/channel",
		":irc.test 461 alice PRIVMSG :Not enough parameters",
	}, output(alice))
}

func TestNoticeNeverErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "NOTICE bob :ping")
	assert.Equal(t, []string{":alice!alice@127.0.0.1 NOTICE bob :ping"}, output(bob))

	run(srv, alice, "NOTICE #gone :x", "NOTICE ghost :x", "NOTICE bob")
	assert.Empty(t, output(alice))
	assert.Empty(t, output(bob))
}

func TestDisconnectCleansUpEverything(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	run(srv, alice, "JOIN #shared,#solo")
	run(srv, bob, "JOIN #shared")
	output(bob)

	srv.removeSession(alice, "Client Quit")

	assert.Equal(t, []string{":alice!alice@127.0.0.1 QUIT :Client Quit"}, output(bob))
	assert.Nil(t, srv.Channel("#solo"))
	ch := srv.Channel("#shared")
	require.NotNil(t, ch)
	assert.Equal(t, []string{bob.ID}, ch.Members())
	assert.False(t, ch.IsOperator(alice.ID))
	assert.NotContains(t, srv.sessions, alice.ID)
	assert.NotContains(t, srv.nicks, "alice")
}

func TestDebugLogOmitsPasswords(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv, err := NewServer(testConfig(), newFakeTransport(), logger)
	require.NoError(t, err)

	alice := newSession(srv)
	run(srv, alice, "PASS "+testPassword, "NICK alice", "USER alice 0 * :Alice")
	require.True(t, alice.Registered())

	mallory := newSession(srv)
	run(srv, mallory, "PASS reused-mail-credential")
	require.True(t, mallory.Closing())

	out := logs.String()
	assert.Contains(t, out, "command=PASS", "dispatch is logged at debug level")
	assert.Contains(t, out, "command=NICK")
	assert.NotContains(t, out, testPassword)
	assert.NotContains(t, out, "reused-mail-credential")
}
