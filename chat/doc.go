// Package chat connects the bot to Twitch.
//
// Bridge joins the configured channels over IRC (go-twitch-irc) and hands
// channel messages and whispers to the orchestrator. Channel conversations are
// identified as "#<channel>" and are shared; whisper conversations are
// "whisper:<user id>" and private.
//
// Sink implements bot.Sink on top of the same IRC client. IRC messages cannot
// be edited, so a placeholder is only a reserved handle: nothing is sent until
// the placeholder is updated with its final content, and a retracted
// placeholder is simply dropped. Outbound chat is paced by a token bucket so
// the bot stays under Twitch's per-channel message limits. Whispers go
// through the Helix API because IRC whispers are no longer delivered.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes; whispers additionally need user:manage:whispers.
package chat
