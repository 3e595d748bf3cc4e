package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", "", "Booking mode: reschedule or booking (overrides config)")
	autoBook := flag.Bool("auto-book", false, "Submit the final confirmation automatically (overrides config)")
	headless := flag.Bool("headless", false, "Run the browser headless (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *mode != "" {
		config.BookingMode = *mode
	}
	if *autoBook {
		config.Preferences.AutoBook = true
	}
	if *headless {
		config.Headless = true
	}
	if *debug {
		config.DebugMode = true
		config.Log.Level = "debug"
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(config.Log)
	defer logger.Sync()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║           Practical Test Rebooking Assistant              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Mode: %s\n", config.BookingMode)
	fmt.Printf("Browser Profile: %s\n", config.BrowserProfilePath)
	if config.Preferences.AutoBook {
		fmt.Println("⚡ AUTO-BOOK - Final confirmation will be submitted automatically")
	} else {
		fmt.Println("✋ HOLD MODE - Stops before final confirmation, complete it yourself")
	}
	if config.SolveManually {
		fmt.Println("🧩 MANUAL CHALLENGE MODE - You solve interstitials yourself")
	}
	if config.DebugMode {
		fmt.Println("🔍 DEBUG MODE - Detailed logging and browser tracing enabled")
	}
	fmt.Println()

	hours, err := NewOperatingHours(config.OpenTime, config.CloseTime)
	if err != nil {
		logger.Fatal("invalid operating hours", zap.Error(err))
	}

	waitForInternet(logger)

	if err := run(config, logger, hours); err != nil {
		logger.Error("run finished with error", zap.Error(err))
		os.Exit(1)
	}
}

// run drives the top-level attempt loop: each attempt gets its own browser
// session and an outer recovery boundary. Unexpected failures screenshot,
// tear down and back off before the next attempt; the ceiling is final.
func run(config *Config, logger *zap.Logger, hours OperatingHours) error {
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		logger.Info("starting attempt",
			zap.Int("attempt", attempt), zap.Int("max", config.MaxAttempts),
			zap.String("mode", config.BookingMode))

		waitUntilOpen(hours, logger)

		err := runAttempt(config, logger)
		if err != nil {
			logger.Error("attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			if attempt < config.MaxAttempts {
				pauseSeconds(logger, 30, 0)
			}
			continue
		}

		if attempt < config.MaxAttempts {
			pauseSeconds(logger, float64(config.AttemptDelaySeconds), 10)
		}
	}

	logger.Info("attempt ceiling reached, exiting")
	return nil
}

// runAttempt runs one session lifecycle. Panics from the depths of the
// browser stack are contained here so a crashed attempt only costs this
// attempt.
func runAttempt(config *Config, logger *zap.Logger) (err error) {
	session := NewBotSession(config, logger)
	defer session.Close()

	defer func() {
		if r := recover(); r != nil {
			session.CaptureScreenshot("panic")
			err = fmt.Errorf("attempt panicked: %v", r)
		}
	}()

	if err := session.Start(); err != nil {
		return err
	}

	switch config.BookingMode {
	case ModeBooking:
		flow := NewInitialBookingFlow(config, logger, session)
		if err := flow.Run(); err != nil {
			session.CaptureScreenshot("initial_booking")
			return err
		}
	default:
		notifier := NewNotifier(config, logger)
		flow := NewRescheduleFlow(config, logger, session, notifier)
		if err := flow.Run(); err != nil {
			session.CaptureScreenshot("reschedule")
			return err
		}
	}

	return nil
}

// pauseSeconds is the between-attempts sleep: base seconds plus a uniform
// random extra of up to jitter seconds.
func pauseSeconds(logger *zap.Logger, base, jitter float64) {
	d := base + rand.Float64()*jitter
	logger.Info("backing off before next attempt", zap.Float64("seconds", d))
	time.Sleep(time.Duration(d * float64(time.Second)))
}
