package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

const (
	maxFrameBytes = 64 << 10
	writeWait     = 10 * time.Second
)

// Options tunes the transport.
type Options struct {
	MessagesPerSecond float64
	Burst             int
	PublicURL         string
}

func (o Options) withDefaults() Options {
	if o.MessagesPerSecond <= 0 {
		o.MessagesPerSecond = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	return o
}

type WSHandler struct {
	service  *app.GameService
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, opts Options, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		opts:    opts.withDefaults(),
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// outbound is one queued frame. closeAfter asks the writer to end the connection once ev, if any,
// is sent.
type outbound struct {
	ev         domain.Event
	closeAfter bool
}

// wsConn is one client connection. It binds to at most one room, as host or as a player.
type wsConn struct {
	h       *WSHandler
	ws      *websocket.Conn
	codec   codec
	id      string
	ip      string
	log     zerolog.Logger
	limiter *rate.Limiter

	send chan outbound
	done chan struct{}

	mu       sync.Mutex
	code     string
	playerID string
	host     bool
	pumps    sync.WaitGroup
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxFrameBytes)

	c := &wsConn{
		h:       h,
		ws:      ws,
		codec:   codecFor(r.URL.Query().Get("codec")),
		id:      uuid.NewString(),
		ip:      sourceIP(r),
		limiter: rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.Burst),
		send:    make(chan outbound, 16),
		done:    make(chan struct{}),
	}
	c.log = h.log.With().Str("conn", c.id).Str("ip", c.ip).Logger()
	c.log.Debug().Msg("connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop(r.Context())

	close(c.done)
	c.mu.Lock()
	code := c.code
	c.mu.Unlock()
	if code != "" {
		c.h.service.Disconnect(code, c.id)
	}
	c.pumps.Wait()
	close(c.send)
	<-writerDone
	c.log.Debug().Msg("connection closed")
}

func (c *wsConn) writeLoop() {
	failed := false
	for msg := range c.send {
		if failed {
			continue
		}
		if msg.ev.Type != "" {
			data, err := c.codec.encode(msg.ev)
			if err != nil {
				c.log.Error().Err(err).Str("event", msg.ev.Type).Msg("encode event")
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.codec.messageType(), data); err != nil {
				c.log.Debug().Err(err).Msg("ws write error")
				failed = true
				_ = c.ws.Close()
				continue
			}
		}
		if msg.closeAfter {
			deadline := time.Now().Add(writeWait)
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			failed = true
			_ = c.ws.Close()
		}
	}
}

// push queues ev unless the reader has already exited.
func (c *wsConn) push(msg outbound) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *wsConn) reply(ev domain.Event) {
	c.push(outbound{ev: ev})
}

func (c *wsConn) ack(ref string, payload any) {
	c.reply(domain.Event{Type: domain.EventAck, Ref: ref, Payload: payload})
}

func (c *wsConn) fail(ref, message string) {
	c.reply(domain.Event{Type: domain.EventError, Ref: ref, Payload: domain.ErrorPayload{Message: message}})
}

// bind attaches the connection to a room subscription and starts forwarding its events. A closed
// subscription (kick, replacement, disposal) ends the connection.
func (c *wsConn) bind(code, playerID string, host bool, sub *app.Subscription) {
	c.mu.Lock()
	c.code, c.playerID, c.host = code, playerID, host
	c.mu.Unlock()
	c.log.Debug().Str("code", code).Bool("host", host).Msg("bound to room")

	c.pumps.Add(1)
	go func() {
		defer c.pumps.Done()
		for ev := range sub.Events {
			if !c.push(outbound{ev: ev}) {
				return
			}
		}
		c.push(outbound{closeAfter: true})
	}()
}

func (c *wsConn) binding() (code, playerID string, host bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.playerID, c.host
}

func (c *wsConn) readLoop(ctx context.Context) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("ws read error")
			}
			return
		}
		if !c.limiter.Allow() {
			c.fail("", "Too many messages")
			continue
		}
		in, err := c.codec.decode(data)
		if err != nil || in.Type == "" {
			c.fail("", "invalid message")
			continue
		}
		c.dispatch(ctx, in)
	}
}

// errBadPayload marks a frame whose payload does not decode into the expected shape.
var errBadPayload = errors.New("invalid payload")

func (c *wsConn) dispatch(ctx context.Context, in envelope) {
	var err error
	switch in.Type {
	case msgCreateRoom:
		err = c.createRoom(ctx, in)
	case msgJoin:
		err = c.join(ctx, in)
	case msgHostResume:
		err = c.hostResume(in)
	case msgPlayerResume:
		err = c.playerResume(in)
	case msgStart, msgNext, msgEndQuestion, msgLock, msgUnlock:
		err = c.hostCommand(in)
	case msgMute, msgUnmute, msgKick:
		err = c.hostTarget(in)
	case msgUpdateSettings:
		err = c.updateSettings(in)
	case msgAnswer, msgUsePowerUp, msgCafeServe, msgCafeUpgrade, msgTDBuild, msgTDUpgrade, msgTDWaveComplete, msgTDDamage:
		err = c.playerAction(in)
	default:
		c.fail(in.Ref, "unsupported message type")
		return
	}
	if errors.Is(err, errBadPayload) {
		c.fail(in.Ref, errBadPayload.Error())
	}
}

func (c *wsConn) decode(in envelope, v any) error {
	if err := c.codec.decodePayload(in.payload, v); err != nil {
		return errBadPayload
	}
	return nil
}

func (c *wsConn) createRoom(ctx context.Context, in envelope) error {
	var p createRoomPayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	if code, _, _ := c.binding(); code != "" {
		c.ack(in.Ref, createRoomAck{Error: "connection already in a room"})
		return nil
	}
	res, err := c.h.service.CreateRoom(ctx, c.id, app.CreateRoomRequest{
		Set:            p.Set,
		SetID:          p.SetID,
		Mode:           p.Mode,
		TeamNames:      p.TeamNames,
		BannedWords:    p.BannedWords,
		LivesPerPlayer: p.LivesPerPlayer,
	})
	if err != nil {
		c.log.Info().Err(err).Msg("create room rejected")
		c.ack(in.Ref, createRoomAck{Error: createRoomError(err)})
		return nil
	}
	c.ack(in.Ref, createRoomAck{OK: true, Code: res.Code, HostToken: res.HostToken})
	c.bind(res.Code, "", true, res.Subscription)
	return nil
}

func createRoomError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuestionSet):
		return err.Error()
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		return "question set not found"
	default:
		return "could not create room"
	}
}

func (c *wsConn) join(ctx context.Context, in envelope) error {
	var p joinPayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	if code, _, _ := c.binding(); code != "" {
		c.ack(in.Ref, joinAck{Reason: "already_joined", Message: "Already in a room"})
		return nil
	}
	code := normalizeCode(p.Code)
	res := c.h.service.Join(ctx, code, app.JoinRequest{
		ConnID:   c.id,
		Nickname: p.Nickname,
		TeamName: p.TeamName,
		SphereID: p.SphereID,
		SourceIP: c.ip,
	})
	if !res.OK() {
		c.ack(in.Ref, joinAck{Reason: string(res.Reason), Message: res.Reason.Message()})
		return nil
	}
	c.ack(in.Ref, joinAck{OK: true, PlayerID: res.PlayerID, ResumeToken: res.ResumeToken})
	c.bind(code, res.PlayerID, false, res.Subscription)
	return nil
}

func (c *wsConn) hostResume(in envelope) error {
	var p hostResumePayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	if code, _, _ := c.binding(); code != "" {
		c.ack(in.Ref, resumeAck{})
		return nil
	}
	code := normalizeCode(p.Code)
	sub, token, err := c.h.service.ResumeHost(c.id, code, p.HostToken)
	if err != nil {
		c.log.Info().Err(err).Str("code", code).Msg("host resume rejected")
		c.ack(in.Ref, resumeAck{})
		return nil
	}
	c.ack(in.Ref, resumeAck{OK: true, HostToken: token})
	c.bind(code, "", true, sub)
	return nil
}

func (c *wsConn) playerResume(in envelope) error {
	var p playerResumePayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	if code, _, _ := c.binding(); code != "" {
		c.ack(in.Ref, resumeAck{})
		return nil
	}
	code := normalizeCode(p.Code)
	sub, ok := c.h.service.ResumePlayer(c.id, code, p.PlayerID, p.ResumeToken)
	if !ok {
		c.ack(in.Ref, resumeAck{})
		return nil
	}
	c.ack(in.Ref, resumeAck{OK: true})
	c.bind(code, p.PlayerID, false, sub)
	return nil
}

// roomFor resolves the room a command targets: the payload code, or the bound room when omitted.
func (c *wsConn) roomFor(raw string) string {
	if code := normalizeCode(raw); code != "" {
		return code
	}
	code, _, _ := c.binding()
	return code
}

func (c *wsConn) hostCommand(in envelope) error {
	var p codePayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	code := c.roomFor(p.Code)
	var applied bool
	switch in.Type {
	case msgStart:
		applied = c.h.service.Start(code, c.id)
	case msgNext:
		applied = c.h.service.Next(code, c.id)
	case msgEndQuestion:
		applied = c.h.service.EndQuestion(code, c.id)
	case msgLock:
		applied = c.h.service.Lock(code, c.id)
	case msgUnlock:
		applied = c.h.service.Unlock(code, c.id)
	}
	c.trace(in.Type, applied)
	return nil
}

func (c *wsConn) hostTarget(in envelope) error {
	var p targetPayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	code := c.roomFor(p.Code)
	var applied bool
	switch in.Type {
	case msgMute:
		applied = c.h.service.Mute(code, c.id, p.PlayerID)
	case msgUnmute:
		applied = c.h.service.Unmute(code, c.id, p.PlayerID)
	case msgKick:
		applied = c.h.service.Kick(code, c.id, p.PlayerID)
	}
	c.trace(in.Type, applied)
	return nil
}

func (c *wsConn) updateSettings(in envelope) error {
	var p settingsPayload
	if err := c.decode(in, &p); err != nil {
		return err
	}
	applied := c.h.service.UpdateSettings(c.roomFor(p.Code), c.id, app.SettingsUpdate{
		BannedWords:    p.BannedWords,
		LivesPerPlayer: p.LivesPerPlayer,
	})
	c.trace(in.Type, applied)
	return nil
}

// playerAction runs a gameplay event as the player bound to this connection. Frames naming a
// different room are dropped.
func (c *wsConn) playerAction(in envelope) error {
	code, playerID, _ := c.binding()
	if playerID == "" {
		c.trace(in.Type, false)
		return nil
	}
	var applied bool
	switch in.Type {
	case msgAnswer:
		var p answerPayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if p.ChoiceIndex != nil && c.sameRoom(code, p.Code) {
			applied = c.h.service.Answer(code, playerID, *p.ChoiceIndex)
		}
	case msgUsePowerUp:
		var p powerUpPayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.UsePowerUp(code, playerID, p.PowerUpID)
		}
	case msgCafeServe:
		var p servePayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.CafeServe(code, playerID, p.CustomerID)
		}
	case msgCafeUpgrade:
		var p upgradePayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.CafeUpgrade(code, playerID, p.UpgradeID)
		}
	case msgTDBuild:
		var p buildPayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.TDBuild(code, playerID, p.TowerID, p.X, p.Y)
		}
	case msgTDUpgrade:
		var p towerIndexPayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.TDUpgrade(code, playerID, p.TowerIndex)
		}
	case msgTDWaveComplete:
		var p codePayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.TDWaveComplete(code, playerID)
		}
	case msgTDDamage:
		var p damagePayload
		if err := c.decode(in, &p); err != nil {
			return err
		}
		if c.sameRoom(code, p.Code) {
			applied = c.h.service.TDDamage(code, playerID, p.Amount)
		}
	}
	c.trace(in.Type, applied)
	return nil
}

func (c *wsConn) sameRoom(bound, raw string) bool {
	code := normalizeCode(raw)
	return code == "" || code == bound
}

func (c *wsConn) trace(event string, applied bool) {
	if !applied {
		c.log.Debug().Str("event", event).Msg("event ignored")
	}
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// sourceIP is the peer address; forwarding headers are not trusted.
func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
