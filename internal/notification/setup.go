package notification

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/config"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
)

// NewFromConfig は設定に応じたチャネルを持つNotifierを作成します
// 返されるclose関数はNATS接続などの後始末を行います
func NewFromConfig(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Notifier, func(), error) {
	var (
		channels []Channel
		closers  []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// メール。APIキーがない場合はログ出力のみ
	var mailer Mailer
	if cfg.Mail.MailerSendAPIKey != "" {
		m, err := NewMailerSendMailer(cfg.Mail.MailerSendAPIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mailer: %w", err)
		}
		mailer = m
	} else {
		logger.Warn("MAILERSEND_API_KEY is not set, emails are logged only")
		mailer = NewDevMailer()
	}
	channels = append(channels, NewEmailChannel(mailer))

	if cfg.Telegram.BotToken != "" {
		channels = append(channels, NewTelegramChannel(cfg.Telegram.BaseURL, cfg.Telegram.BotToken))
	}

	if cfg.NATS.URL != "" {
		publisher, err := NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to drain NATS connection", "error", err)
			}
		})
		channels = append(channels, NewEventChannel(publisher))
	}

	// Step Functionsはローカル環境では使わない
	if cfg.SFN.StateMachineARN != "" && !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		channels = append(channels, NewStepFunctionsChannel(sfn.NewFromConfig(awsCfg), cfg.SFN.StateMachineARN))
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	logger.Info("notification channels configured", "channels", names)

	return NewNotifier(clk, channels...), closeAll, nil
}
