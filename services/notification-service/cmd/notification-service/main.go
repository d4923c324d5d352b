package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/waitlinehq/waitline/libs/config"
	"github.com/waitlinehq/waitline/libs/db"
	"github.com/waitlinehq/waitline/libs/httpx"
	"github.com/waitlinehq/waitline/libs/kafkax"
	otelx "github.com/waitlinehq/waitline/libs/otel"
	"github.com/waitlinehq/waitline/libs/runtime"
	"github.com/waitlinehq/waitline/services/notification-service/internal/consumer"
	"github.com/waitlinehq/waitline/services/notification-service/internal/email"
	"github.com/waitlinehq/waitline/services/notification-service/internal/inbox"
	"github.com/waitlinehq/waitline/services/notification-service/internal/sms"
	"github.com/waitlinehq/waitline/services/notification-service/internal/storage"
)

// queueEventPayload covers the fields shared by every queue.item.* event.
type queueEventPayload struct {
	ItemID          string `json:"item_id"`
	ServiceID       string `json:"service_id"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	QueueType       string `json:"queue_type"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@waitline.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	default:
		smsSender = sms.NewNoopSender()
	}

	deliver := func(ctx context.Context, payload queueEventPayload, subject, body string) {
		channel := "sms"
		recipient := payload.CustomerPhone
		var sendErr error
		if payload.CustomerEmail != "" {
			channel = "email"
			recipient = payload.CustomerEmail
			sendErr = emailSender.Send(recipient, subject, body)
		} else {
			sendErr = smsSender.Send(ctx, recipient, body)
		}

		status := "sent"
		if sendErr != nil {
			status = "failed"
			logger.Error("notification send failed", "err", sendErr, "channel", channel, "item_id", payload.ItemID)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			ItemID:    payload.ItemID,
			ServiceID: payload.ServiceID,
			Channel:   channel,
			Recipient: recipient,
			Payload:   map[string]any{"subject": subject, "body": body},
			Status:    status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err, "item_id", payload.ItemID)
			return
		}
		logger.Info("notification processed", "item_id", payload.ItemID, "channel", channel, "status", status)
	}

	parsePayload := func(msg kafka.Message) (queueEventPayload, bool) {
		var payload queueEventPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return queueEventPayload{}, false
		}
		if payload.ItemID == "" || (payload.CustomerPhone == "" && payload.CustomerEmail == "") {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return queueEventPayload{}, false
		}
		return payload, true
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	// Joined: confirm appointments; walk-ins only get the called notice.
	startConsumer(config.String("KAFKA_TOPIC_JOINED", "queue.item.joined.v1"), func(ctx context.Context, msg kafka.Message) error {
		payload, ok := parsePayload(msg)
		if !ok {
			return nil
		}
		if payload.QueueType != "appointment" {
			return nil
		}
		body := fmt.Sprintf("Hi %s, your appointment is confirmed for %s at %s.",
			payload.CustomerName, payload.AppointmentDate, payload.AppointmentTime)
		deliver(ctx, payload, "Appointment confirmed", body)
		return nil
	})

	startConsumer(config.String("KAFKA_TOPIC_CALLED", "queue.item.called.v1"), func(ctx context.Context, msg kafka.Message) error {
		payload, ok := parsePayload(msg)
		if !ok {
			return nil
		}
		body := fmt.Sprintf("Hi %s, it's your turn now. Please come to the counter.", payload.CustomerName)
		deliver(ctx, payload, "You're up", body)
		return nil
	})

	startConsumer(config.String("KAFKA_TOPIC_CANCELLED", "queue.item.cancelled.v1"), func(ctx context.Context, msg kafka.Message) error {
		payload, ok := parsePayload(msg)
		if !ok {
			return nil
		}
		body := fmt.Sprintf("Hi %s, your spot in the queue has been cancelled.", payload.CustomerName)
		deliver(ctx, payload, "Queue spot cancelled", body)
		return nil
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
