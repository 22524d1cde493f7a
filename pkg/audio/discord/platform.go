// Package discord bridges Discord voice channels, via the
// bwmarrin/discordgo library, to the voxloop audio path. It demuxes
// incoming Opus packets by SSRC into per-speaker packet streams and sends
// outgoing Opus packets paced at the voice frame rate.
//
// Unlike the session pipeline, this package never touches PCM: packets
// stay encoded and keep their transport sequence, timestamp, and SSRC so
// the per-session [audio.Handler] can decode and jitter-buffer them.
//
// The platform requires an active *discordgo.Session (owned by the bot
// layer) and a guild ID. Each call to [Platform.Connect] joins the
// specified voice channel and returns a [Connection].
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Platform opens voice connections within one Discord guild. It requires
// an active *discordgo.Session (owned by the bot layer).
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// New creates a new Discord Platform for the given session and guild.
func New(session *discordgo.Session, guildID string) *Platform {
	return &Platform{
		session: session,
		guildID: guildID,
	}
}

// Connect joins the voice channel identified by channelID and returns an
// active [Connection]. The supplied ctx governs the connection-setup phase
// only; once the Connection is returned it lives until
// [Connection.Disconnect] is called.
func (p *Platform) Connect(ctx context.Context, channelID string) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Join the voice channel: mute=false (we send audio), deaf=false (we receive audio).
	vc, err := p.session.ChannelVoiceJoin(p.guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	conn := newConnection(vc, p.session, p.guildID)
	return conn, nil
}
