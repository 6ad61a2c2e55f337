package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"okx-spread-bot/internal/config"
	"okx-spread-bot/internal/logging"
	"okx-spread-bot/internal/market"
	"okx-spread-bot/internal/metrics"
	"okx-spread-bot/internal/okx/auth"
	"okx-spread-bot/internal/okx/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionAccountFeed owns the authenticated private channel. Each connect
// performs the full login handshake from scratch; the positions and account
// subscription is sent only after the login acknowledgment. Position updates
// are filtered to the configured instruments and written into the position
// book; balance updates are filtered to the derived base currencies and
// logged only.
type PositionAccountFeed struct {
	client     *ws.Client
	book       *market.PositionBook
	creds      config.Credentials
	instFilter map[string]struct{}
	ccyFilter  map[string]struct{}
	machine    *ConnStateMachine
	log        *zap.Logger
	throttle   *logging.Throttle
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewPositions(client *ws.Client, book *market.PositionBook, creds config.Credentials, instIDs []string, log *zap.Logger, throttle *logging.Throttle, m *metrics.Metrics) *PositionAccountFeed {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	instFilter := make(map[string]struct{}, len(instIDs))
	ccyFilter := make(map[string]struct{}, len(instIDs))
	for _, id := range instIDs {
		instFilter[strings.ToUpper(id)] = struct{}{}
		if base, _, ok := strings.Cut(id, "-"); ok && base != "" {
			ccyFilter[strings.ToUpper(base)] = struct{}{}
		}
	}
	f := &PositionAccountFeed{
		client:     client,
		book:       book,
		creds:      creds,
		instFilter: instFilter,
		ccyFilter:  ccyFilter,
		machine:    NewConnStateMachine(),
		log:        log,
		throttle:   throttle,
		metrics:    m,
		now:        time.Now,
	}
	client.SetConnectHook(f.login)
	client.SetDisconnectHook(func() { f.machine.Apply(EventDropped) })
	return f
}

// State exposes the handshake state machine, mostly for tests and health
// reporting.
func (f *PositionAccountFeed) State() ConnState {
	return f.machine.State()
}

func (f *PositionAccountFeed) Run(ctx context.Context) error {
	err := f.client.Run(ctx, f.handleMessage)
	f.machine.Apply(EventShutdown)
	return err
}

// login runs on every (re)connect: authentication is retried fully, there is
// no session resumption.
func (f *PositionAccountFeed) login(ctx context.Context, c *ws.Client) error {
	f.machine.Apply(EventDialed)
	timestamp, sign := auth.LoginSignature(f.creds.SecretKey, f.now())
	frame := loginFrame{Op: "login", Args: []loginArg{{
		APIKey:     f.creds.APIKey,
		Passphrase: f.creds.Passphrase,
		Timestamp:  timestamp,
		Sign:       sign,
	}}}
	if err := c.Send(ctx, frame); err != nil {
		return err
	}
	f.machine.Apply(EventLoginSent)
	return nil
}

type positionData struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"`
	Pos     string `json:"pos"`
}

type accountData struct {
	Details []struct {
		Ccy      string `json:"ccy"`
		AvailBal string `json:"availBal"`
	} `json:"details"`
}

func (f *PositionAccountFeed) handleMessage(msg json.RawMessage) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("private message decode failed", zap.Error(err))
		return
	}
	switch {
	case env.Event == "login":
		f.handleLoginAck(env)
	case env.Event != "":
		logControlEvent(f.log, env)
	case env.Arg.Channel == channelPositions:
		f.handlePositions(env)
	case env.Arg.Channel == channelAccount:
		f.handleAccount(env)
	}
}

// handleLoginAck advances the handshake on event=login with a zero code and
// sends the single private subscribe frame. A rejected login leaves the
// machine in Authenticating; the channel will retry from scratch when the
// read loop next drops.
func (f *PositionAccountFeed) handleLoginAck(env envelope) {
	if env.Code != "0" {
		f.log.Error("login rejected", zap.String("code", env.Code), zap.String("msg", env.Msg))
		return
	}
	if f.machine.State() != StateAuthenticating {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.client.Send(ctx, subscribePrivate()); err != nil {
		f.log.Error("private subscribe failed", zap.Error(err))
		return
	}
	f.machine.Apply(EventLoginAck)
	f.log.Info("authenticated, subscribed to positions and account")
}

func (f *PositionAccountFeed) handlePositions(env envelope) {
	var positions []positionData
	if err := json.Unmarshal(env.Data, &positions); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("position data decode failed", zap.Error(err))
		return
	}
	for _, pos := range positions {
		if pos.InstID == "" {
			continue
		}
		if _, ok := f.instFilter[strings.ToUpper(pos.InstID)]; !ok {
			continue
		}
		size, err := decimal.NewFromString(pos.Pos)
		if err != nil {
			f.metrics.ParseErrors.Inc()
			f.log.Error("unparsable position size", zap.String("inst_id", pos.InstID), zap.String("pos", pos.Pos))
			continue
		}
		side := pos.PosSide
		if side == "" {
			side = market.SideNet
		}
		f.book.Set(pos.InstID, side, size)
		f.machine.Apply(EventData)
		f.metrics.PositionMessages.Inc()
		if f.throttle.Allow(pos.InstID) {
			f.log.Info("position",
				zap.String("inst_id", pos.InstID),
				zap.String("side", side),
				zap.String("size", pos.Pos),
			)
		}
	}
}

// handleAccount logs filtered balances; balances are observational only and
// never written into the position book.
func (f *PositionAccountFeed) handleAccount(env envelope) {
	var accounts []accountData
	if err := json.Unmarshal(env.Data, &accounts); err != nil {
		f.metrics.ParseErrors.Inc()
		f.log.Error("account data decode failed", zap.Error(err))
		return
	}
	for _, account := range accounts {
		for _, detail := range account.Details {
			if detail.Ccy == "" {
				continue
			}
			if _, ok := f.ccyFilter[strings.ToUpper(detail.Ccy)]; !ok {
				continue
			}
			f.machine.Apply(EventData)
			if f.throttle.Allow(detail.Ccy) {
				f.log.Info("balance", zap.String("ccy", detail.Ccy), zap.String("avail", detail.AvailBal))
			}
		}
	}
}
