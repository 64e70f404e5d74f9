// Package notify delivers plain-text operator messages. Delivery is
// best-effort: failures are logged by callers, never retried, and
// never roll back the state transition that triggered them.
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/QuanCamile/RemindKanban/internal/config"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Nop drops every message. Used when no channel is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }

// Build picks the operator channel from config. An unconfigured or
// unknown channel yields Nop rather than an error so the service still
// runs without notifications.
func Build(ctx context.Context, cfg config.Config) (Notifier, error) {
	switch cfg.NotifyChannel {
	case config.ChannelTelegram:
		if cfg.TGBotToken == "" || cfg.TGChatID == "" {
			return Nop{}, nil
		}
		return NewTelegram(cfg.TGBotToken, cfg.TGChatID), nil
	case config.ChannelSES:
		if cfg.OperatorEmail == "" {
			return Nop{}, nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSES(awsCfg, cfg.SESFromEmail, cfg.OperatorEmail)
	default:
		return Nop{}, nil
	}
}
