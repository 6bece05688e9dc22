package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontdesk-backend-go/internal/capture"
	"frontdesk-backend-go/internal/kiosk"
	"frontdesk-backend-go/internal/logging"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("KIOSK_API_URL", "http://localhost:8080"), "front-desk API base URL")
	deviceID := flag.String("device-id", envOr("KIOSK_DEVICE_ID", ""), "stable id of this terminal")
	identifier := flag.String("identifier", envOr("KIOSK_IDENTIFIER", ""), "staff CPF")
	secret := flag.String("secret", os.Getenv("KIOSK_SECRET"), "staff secret")
	resident := flag.String("resident", "", "resident id the delivery is for")
	notes := flag.String("notes", "", "optional delivery notes")
	rearCamera := flag.String("camera", "/dev/video0", "environment-facing camera device")
	frontCamera := flag.String("front-camera", "", "user-facing camera device")
	ffmpeg := flag.String("ffmpeg", "ffmpeg", "ffmpeg binary used to grab frames")
	retries := flag.Int("retries", 3, "camera acquisition retries on permission or busy errors")
	timeout := flag.Duration("timeout", 15*time.Second, "camera start and API request timeout")
	flag.Parse()

	logger, flush, err := logging.New(logging.Options{Level: envOr("LOG_LEVEL", "info"), Format: "console", Service: "frontdesk-kiosk"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	if *resident == "" || *identifier == "" || *secret == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *deviceID == "" {
		*deviceID = uuid.NewString()
		logger.Warn("no device id given, sessions will not survive restarts", zap.String("device_id", *deviceID))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acquirer := &capture.Acquirer{
		Device: &capture.V4L2Device{
			Paths: map[capture.Facing]string{
				capture.FacingEnvironment: *rearCamera,
				capture.FacingUser:        *frontCamera,
			},
			FFmpeg: *ffmpeg,
		},
		Timeout: *timeout,
		Logger:  logger,
	}
	frame, err := captureWithRetry(ctx, acquirer, *retries, logger)
	if err != nil {
		logger.Fatal("camera", zap.Error(err))
	}

	client := kiosk.NewClient(*apiURL, *deviceID, *timeout)
	if err := client.Login(ctx, *identifier, *secret); err != nil {
		logger.Fatal("login", zap.Error(err))
	}
	delivery, err := client.Register(ctx, *resident, *notes, frame)
	if err != nil {
		logger.Fatal("register delivery", zap.Error(err))
	}
	logger.Info("delivery registered",
		zap.String("delivery_id", delivery.ID),
		zap.String("resident", delivery.ResidentName),
		zap.Bool("notified", delivery.NotificationSent),
	)
	fmt.Println(delivery.PickupCode)
}

// captureWithRetry grabs one frame. Permission and busy errors are retried
// after a pause so the operator can fix the cause; other errors are final.
func captureWithRetry(ctx context.Context, a *capture.Acquirer, retries int, logger *zap.Logger) (capture.Frame, error) {
	frame, err := capture.CaptureOnce(ctx, a)
	for attempt := 1; err != nil && attempt <= retries; attempt++ {
		if !errors.Is(err, capture.ErrPermissionDenied) && !errors.Is(err, capture.ErrInUse) && !errors.Is(err, capture.ErrTimeout) {
			return capture.Frame{}, err
		}
		logger.Warn("camera unavailable, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return capture.Frame{}, ctx.Err()
		}
		frame, err = capture.CaptureOnce(ctx, a)
	}
	return frame, err
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
