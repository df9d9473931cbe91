package wsclient

// handshake is the first frame written on every smux stream this package
// opens: it tells the peer which channel the stream addresses and
// whether it is the publish or subscribe side.
type handshake struct {
	Channel        string `json:"channel"`
	Role           string `json:"role"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

const (
	rolePublish   = "publish"
	roleSubscribe = "subscribe"
)

// ack is the server's reply to a subscribe handshake.
type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
