package orch

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
	"github.com/dkeye/peerlink/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// DefaultGracePeriod is how long a dropped member is kept before it is
// considered gone.
const DefaultGracePeriod = 5 * time.Second

// Orchestrator is the signaling router. It is safe for concurrent use by
// any number of connection handlers; all room state changes happen under
// the room's lock.
type Orchestrator struct {
	Registry    *app.Registry
	Policy      app.Policy
	JoinLimiter *app.RateLimiter
	Metrics     *metrics.Metrics

	GracePeriod        time.Duration
	MaxUsersPerRoom    int
	SupportedLanguages []string

	once     sync.Once
	validate *validator.Validate
}

func (o *Orchestrator) lazyinit() {
	o.once.Do(func() {
		o.validate = validator.New(validator.WithRequiredStructEnabled())
	})
}

func (o *Orchestrator) gracePeriod() time.Duration {
	if o.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return o.GracePeriod
}

// Dispatch handles one inbound frame from conn. Errors are reported back
// on conn; nothing here closes the connection.
func (o *Orchestrator) Dispatch(conn core.SignalConnection, data []byte) {
	o.lazyinit()

	msg, err := o.parse(data)
	if err != nil {
		o.replyError(conn, nil, err)
		return
	}
	o.Metrics.Message(metricType(msg.Type))

	logger := log.With().
		Str("module", "orch").
		Str("room", string(msg.RoomID)).
		Str("user", string(msg.UserID)).
		Str("type", string(msg.Type)).
		Logger()
	if msg.To != "" {
		logger = logger.With().Str("to", string(msg.To)).Logger()
	}
	logger.Debug().Msg("received")

	room, ok := o.Registry.LookupRoom(msg.RoomID)
	if !ok {
		o.replyError(conn, msg, core.ErrRoomNotFound)
		return
	}

	switch {
	case msg.Type == core.TypeJoin:
		err = o.handleJoin(conn, room, msg)
	case msg.Type == core.TypeReconnect:
		err = o.handleReconnect(conn, room, msg)
	case msg.Type == core.TypeSetOfferMode:
		err = o.handleSetOfferMode(room, msg)
	case msg.Type.Directed():
		err = o.handleRelay(room, msg)
	default:
		logger.Debug().Msg("ignoring unsupported message type")
		return
	}
	if err != nil {
		o.replyError(conn, msg, err)
	}
}

func (o *Orchestrator) parse(data []byte) (*core.Message, error) {
	var msg core.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("bad json")
		return nil, core.ErrMalformedMessage
	}
	if err := o.validate.Struct(&msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("incomplete message")
		return nil, core.ErrMissingField
	}
	return &msg, nil
}

// decodePayload treats a missing or null payload as empty.
func decodePayload(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("bad payload")
		return core.ErrMalformedMessage
	}
	return nil
}

func (o *Orchestrator) replyError(conn core.SignalConnection, msg *core.Message, err error) {
	reason := core.Reason(err)
	o.Metrics.Error(reason)
	ev := log.Warn().Str("module", "orch").Str("reason", reason)
	if msg != nil {
		ev = ev.Str("room", string(msg.RoomID)).Str("user", string(msg.UserID)).Str("type", string(msg.Type))
	}
	ev.Msg(err.Error())
	if sendErr := conn.TrySend(core.EncodeError(err)); sendErr != nil {
		o.Metrics.Dropped()
		log.Debug().Err(sendErr).Str("module", "orch").Msg("error reply dropped")
	}
}

// deliver sends to one member. Caller holds the room lock.
func (o *Orchestrator) deliver(room *core.Room, m *core.Member, t core.MessageType, payload any, from, to domain.UserID) {
	f, err := core.Encode(room.ID(), t, payload, from, to)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(t)).Msg("encode")
		return
	}
	if err := room.SendTo(m.ID(), f); err != nil {
		o.onSendFailure(room, m, err)
	}
}

// broadcast sends to every connected member except from. Caller holds
// the room lock.
func (o *Orchestrator) broadcast(room *core.Room, from domain.UserID, t core.MessageType, payload any) {
	f, err := core.Encode(room.ID(), t, payload, "", "")
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(t)).Msg("encode")
		return
	}
	res := room.Broadcast(from, f)
	for _, slow := range res.Dropped {
		o.onSendFailure(room, slow, core.ErrBackpressure)
	}
}

func (o *Orchestrator) onSendFailure(room *core.Room, m *core.Member, err error) {
	o.Metrics.Dropped()
	log.Warn().Err(err).Str("module", "orch").Str("room", string(room.ID())).Str("user", string(m.ID())).Msg("send failed")
	if !errors.Is(err, core.ErrBackpressure) || o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, m) {
	case app.CloseConnection:
		// The read pump sees the close and hands the member to the
		// supervisor like any other drop.
		if c := m.Conn(); c != nil {
			c.Close()
		}
	case app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) checkLanguage(lang string) {
	if lang == "" || len(o.SupportedLanguages) == 0 || domain.LanguageSupported(lang, o.SupportedLanguages) {
		return
	}
	log.Warn().Str("module", "orch").Str("language", lang).Msg("unsupported language")
}

// metricType keeps the label set bounded.
func metricType(t core.MessageType) string {
	switch t {
	case core.TypeJoin, core.TypeReconnect, core.TypeSetOfferMode:
		return string(t)
	}
	if t.Directed() {
		return string(t)
	}
	return "other"
}
