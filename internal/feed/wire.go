package feed

import "encoding/json"

// Channel names on the OKX v5 subscription endpoints. The book feed always
// subscribes to the fixed five-level snapshot tier; the depth actually read
// out of each snapshot is a client-side concern.
const (
	channelTickers   = "tickers"
	channelBooks     = "books5"
	channelPositions = "positions"
	channelAccount   = "account"
)

// envelope is the common shape of every push and control message: control
// messages carry event/code, data pushes carry arg/data.
type envelope struct {
	Event string          `json:"event"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Arg   subscriptionArg `json:"arg"`
	Data  json.RawMessage `json:"data"`
}

type subscriptionArg struct {
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
}

type subscribeFrame struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

func subscribeInstruments(channel string, instIDs []string) subscribeFrame {
	args := make([]any, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, map[string]string{"channel": channel, "instId": id})
	}
	return subscribeFrame{Op: "subscribe", Args: args}
}

// subscribePrivate requests position updates for both instrument types plus
// account balance updates. Sent only after a successful login.
func subscribePrivate() subscribeFrame {
	return subscribeFrame{Op: "subscribe", Args: []any{
		map[string]string{"channel": channelPositions, "instType": "SWAP"},
		map[string]string{"channel": channelPositions, "instType": "SPOT"},
		map[string]string{"channel": channelAccount},
	}}
}

type loginFrame struct {
	Op   string     `json:"op"`
	Args []loginArg `json:"args"`
}

type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}
