package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

// PushSender delivers one payload to one browser subscription and
// reports the push service's HTTP status.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

type PushConfig struct {
	Subscriber      string `toml:"subscriber"`
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	TTLSeconds      int    `toml:"ttl_seconds"`
	Title           string `toml:"title"`
}

func (c PushConfig) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

type pushPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

func encodePush(title, message, url string) ([]byte, error) {
	return json.Marshal(pushPayload{Title: title, Message: message, URL: url})
}

type WebPush struct {
	config PushConfig
	client *http.Client
}

func NewWebPush(config PushConfig) *WebPush {
	return &WebPush{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebPush) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.config.Subscriber,
		VAPIDPublicKey:  w.config.VAPIDPublicKey,
		VAPIDPrivateKey: w.config.VAPIDPrivateKey,
		TTL:             w.config.TTLSeconds,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
