package discord

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	inputChannelBuffer  = 64
	outputChannelBuffer = 64

	// frameDuration is Discord's fixed Opus voice frame length.
	frameDuration = 20 * time.Millisecond

	// speakingHangover is how long the send loop waits with an empty output
	// queue before clearing the speaking indicator.
	speakingHangover = 200 * time.Millisecond
)

// Packet is one encoded Opus packet received from or destined for Discord,
// together with the transport metadata the jitter buffer orders by.
type Packet struct {
	// Opus holds the encoded payload. It is never decoded in this package.
	Opus []byte

	// Sequence is the RTP sequence number assigned by the sender.
	Sequence uint16

	// Timestamp is the RTP timestamp in sample units (48 kHz).
	Timestamp uint32

	// SSRC identifies the speaker this packet belongs to.
	SSRC uint32
}

// EventType classifies participant lifecycle events.
type EventType int

const (
	// EventJoin fires when a participant joins the voice channel or is
	// first heard on a new SSRC.
	EventJoin EventType = iota

	// EventLeave fires when a participant leaves the voice channel.
	EventLeave
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Event describes a participant joining or leaving the connected channel.
type Event struct {
	Type     EventType
	UserID   string
	Username string
}

// Connection wraps a discordgo.VoiceConnection. It demuxes incoming Opus
// packets by SSRC into per-speaker input streams and paces outgoing Opus
// packets onto the wire at the voice frame rate.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	inputsMu sync.RWMutex
	inputs   map[uint32]chan Packet
	ssrcUser map[uint32]string // SSRC -> userID, from VoiceSpeakingUpdate

	output chan Packet

	changeCb func(Event)
	changeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func() // removes the VoiceStateUpdate handler

	// disconnectVC is called during Disconnect to tear down the voice
	// connection. Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection initialises a Connection for an already-joined voice channel.
// It starts background goroutines for receiving and sending audio.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) *Connection {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		inputs:       make(map[uint32]chan Packet),
		ssrcUser:     make(map[uint32]string),
		output:       make(chan Packet, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	// VoiceStateUpdate tells us about joins/leaves; VoiceSpeakingUpdate is
	// the only place Discord reveals the SSRC -> user mapping.
	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	go c.sendLoop()

	return c
}

// InputStreams returns a snapshot of the current per-speaker packet
// channels, keyed by SSRC. Channels are closed when the connection
// disconnects.
func (c *Connection) InputStreams() map[uint32]<-chan Packet {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	snap := make(map[uint32]<-chan Packet, len(c.inputs))
	for ssrc, ch := range c.inputs {
		snap[ssrc] = ch
	}
	return snap
}

// OutputStream returns the write-only channel for assistant audio output.
// Packets written here are sent to Discord paced one per frame interval.
func (c *Connection) OutputStream() chan<- Packet {
	return c.output
}

// OnParticipantChange registers cb as the callback for participant
// join/leave events. Only one callback may be registered; subsequent calls
// replace the previous one.
func (c *Connection) OnParticipantChange(cb func(Event)) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	c.changeCb = cb
}

// UserForSSRC returns the user ID heard on the given SSRC. The mapping is
// populated from VoiceSpeakingUpdate events; until one arrives the SSRC
// itself is returned in decimal form.
func (c *Connection) UserForSSRC(ssrc uint32) string {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	if userID, ok := c.ssrcUser[ssrc]; ok {
		return userID
	}
	return strconv.FormatUint(uint64(ssrc), 10)
}

// Disconnect cleanly tears down the voice connection and stops all
// background goroutines. It is safe to call more than once; subsequent
// calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		if c.removeHandler != nil {
			c.removeHandler()
		}

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}

		// Close all input channels so downstream consumers see EOF.
		c.inputsMu.Lock()
		for ssrc, ch := range c.inputs {
			close(ch)
			delete(c.inputs, ssrc)
		}
		c.inputsMu.Unlock()
	})
	return err
}

// recvLoop reads Opus packets from the Discord voice connection and demuxes
// them by SSRC into per-speaker channels. Payloads are forwarded encoded;
// decoding is the consumer's concern.
func (c *Connection) recvLoop() {
	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			c.inputsMu.Lock()
			ch, exists := c.inputs[pkt.SSRC]
			if !exists {
				ch = make(chan Packet, inputChannelBuffer)
				c.inputs[pkt.SSRC] = ch
			}
			c.inputsMu.Unlock()

			if !exists {
				// First packet on a new SSRC counts as a join even before a
				// VoiceStateUpdate identifies the user.
				c.emitEvent(Event{
					Type:   EventJoin,
					UserID: c.UserForSSRC(pkt.SSRC),
				})
			}

			frame := Packet{
				Opus:      pkt.Opus,
				Sequence:  pkt.Sequence,
				Timestamp: pkt.Timestamp,
				SSRC:      pkt.SSRC,
			}

			select {
			case ch <- frame:
			default:
				// Channel full — drop rather than block the receive path.
			}
		}
	}
}

// sendLoop forwards queued output packets to Discord, pacing one packet per
// frame interval so a burst drained from a playback queue does not flood
// the connection. It raises the speaking indicator while audio flows and
// clears it after a short idle hangover.
func (c *Connection) sendLoop() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	idle := time.NewTimer(speakingHangover)
	defer idle.Stop()

	speaking := false

	for {
		select {
		case <-c.done:
			if speaking {
				c.setSpeaking(false)
			}
			return

		case <-idle.C:
			if speaking {
				c.setSpeaking(false)
				speaking = false
			}

		case pkt, ok := <-c.output:
			if !ok {
				return
			}

			if !speaking {
				c.setSpeaking(true)
				speaking = true
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(speakingHangover)

			select {
			case <-ticker.C:
			case <-c.done:
				return
			}

			select {
			case c.vc.OpusSend <- pkt.Opus:
			case <-c.done:
				return
			}
		}
	}
}

// handleVoiceStateUpdate processes Discord VoiceStateUpdate events to detect
// participant joins and leaves for the voice channel this connection is on.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}

	channelID := c.vc.ChannelID

	// Participant left our channel.
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID && vsu.ChannelID != channelID {
		username := ""
		if vsu.Member != nil && vsu.Member.User != nil {
			username = vsu.Member.User.Username
		}
		c.emitEvent(Event{
			Type:     EventLeave,
			UserID:   vsu.UserID,
			Username: username,
		})
		return
	}

	// Participant joined our channel.
	if vsu.ChannelID == channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != channelID) {
		username := ""
		if vsu.Member != nil && vsu.Member.User != nil {
			username = vsu.Member.User.Username
		}
		c.emitEvent(Event{
			Type:     EventJoin,
			UserID:   vsu.UserID,
			Username: username,
		})
	}
}

// handleSpeakingUpdate records the SSRC -> user mapping Discord announces
// when a participant starts speaking.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	c.inputsMu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.inputsMu.Unlock()
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// emitEvent safely invokes the registered participant change callback.
func (c *Connection) emitEvent(ev Event) {
	c.changeMu.Lock()
	cb := c.changeCb
	c.changeMu.Unlock()
	if cb != nil {
		go cb(ev)
	}
}
