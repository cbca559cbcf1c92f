package main

// Sends one message over each configured external channel so SMTP and Lark
// credentials can be checked without running the portal.
//
//	test-notification -to someone@example.com [-channel email|chat] [-config configs/config.yaml]

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/config"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/email"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/lark"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	to := flag.String("to", "", "recipient e-mail address (also used to address Lark chat)")
	only := flag.String("channel", "", "send over this channel only: email or chat")
	flag.Parse()

	fmt.Println("=== Notification Channel Test ===")

	if *to == "" {
		fmt.Println("Usage: ./bin/test-notification -to <email> [-channel email|chat]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	senders := buildSenders(cfg, logger)
	if len(senders) == 0 {
		log.Fatal("No channel is configured. Set email.host or lark.app_id/app_secret.")
	}

	msg := &entity.OutboxMessage{
		Recipient: *to,
		Subject:   "Staff portal notification test",
		Body:      fmt.Sprintf("Test message sent at %s", time.Now().Format(time.RFC1123)),
		CreatedAt: time.Now(),
	}

	failed := 0
	for _, sender := range senders {
		if *only != "" && string(sender.Channel()) != *only {
			continue
		}

		fmt.Printf("\n[%s] Sending to %s...\n", sender.Channel(), *to)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		msg.Channel = sender.Channel()
		err := sender.Send(ctx, msg)
		cancel()

		if err != nil {
			failed++
			fmt.Printf("✗ %s failed: %v\n", sender.Channel(), err)
			continue
		}
		fmt.Printf("✓ %s sent\n", sender.Channel())
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func buildSenders(cfg *config.Config, logger *zap.Logger) []port.ChannelSender {
	var senders []port.ChannelSender

	if cfg.Email.Host != "" {
		mailer, err := email.NewMailer(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Timeout:  cfg.Email.Timeout,
		}, logger)
		if err != nil {
			fmt.Printf("✗ email disabled: %v\n", err)
		} else {
			senders = append(senders, email.NewChannelSender(mailer))
		}
	}

	if cfg.Lark.AppID != "" && cfg.Lark.AppSecret != "" {
		client := lark.NewClient(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		}, logger)
		senders = append(senders, lark.NewMessenger(client, logger))
	}

	return senders
}
