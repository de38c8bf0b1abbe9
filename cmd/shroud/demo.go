package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shroudnet/shroud-go/pkg/frame"
	"github.com/shroudnet/shroud-go/pkg/handshake"
	"github.com/shroudnet/shroud-go/pkg/metrics"
	"github.com/shroudnet/shroud-go/pkg/session"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

func runDemo(message string, frames int, suiteName string, rekey, verbose bool, obsAddr, logLevel, logFormat, tracing string) {
	collector, logger, err := setupObservability(logLevel, logFormat, tracing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	chosen, err := parseSuiteName(suiteName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Shroud Secure Transport Demo                        ║")
	fmt.Println("║      Noise XX + Hybrid ML-KEM                            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if verbose {
		fmt.Println("Security Properties:")
		fmt.Println("  • Post-Quantum: ML-KEM-768 / ML-KEM-1024 (NIST FIPS 203)")
		fmt.Println("  • Classical: X25519 (RFC 7748) inside Noise XX")
		fmt.Println("  • Hybrid: Secure if EITHER algorithm is secure")
		fmt.Println("  • AEAD: ChaCha20-Poly1305 or AES-256-GCM per suite")
		fmt.Println()
	}

	if obsAddr != "" {
		server := metrics.NewServer(metrics.ServerConfig{
			Collector:        collector,
			Version:          getVersion(),
			Namespace:        "shroud",
			EnablePrometheus: true,
			EnableHealth:     true,
		})

		go func() {
			if err := server.ListenAndServe(obsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observability server error", metrics.Fields{"error": err.Error()})
			}
		}()

		fmt.Printf("✓ Observability server on %s (metrics: /metrics, health: /health)\n", obsAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	initTransport, respTransport := session.LoopbackPair(16)
	defer func() { _ = initTransport.Close() }()

	opts := handshake.Options{Suites: []suite.Suite{chosen}}

	fmt.Printf("Running handshake (suite: %s)...\n", chosen)
	handshakeStart := time.Now()

	var (
		wg       sync.WaitGroup
		respSess *session.Session
		respErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		respSess, respErr = runResponder(ctx, respTransport, opts, collector, message, frames, verbose)
	}()

	initSess, err := runInitiator(ctx, initTransport, opts, collector, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: handshake failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = initSess.Close() }()

	fmt.Printf("✓ Handshake complete in %v\n", time.Since(handshakeStart))
	if verbose {
		fmt.Printf("  Suite: %s\n", initSess.Suite())
		fmt.Printf("  Wire format: %s\n", initSess.WireFormat())
		fmt.Printf("  Connection ID: %x\n", initSess.LocalConnectionID())
	}
	fmt.Println()

	// Exchange data frames with the responder echoing each one back.
	for i := 0; i < frames; i++ {
		if rekey && i == frames/2 {
			rekeyFrame, err := initSess.RekeyDH()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: rekey failed: %v\n", err)
				os.Exit(1)
			}
			if err := initTransport.Send(ctx, rekeyFrame); err != nil {
				fmt.Fprintf(os.Stderr, "Error: rekey send failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✓ DH rekey initiated")
		}

		payload := fmt.Sprintf("%s #%d", message, i+1)
		wire, err := initSess.SealFrame(frame.TypeData, 1, 0, []byte(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: seal failed: %v\n", err)
			os.Exit(1)
		}
		if err := initTransport.Send(ctx, wire); err != nil {
			fmt.Fprintf(os.Stderr, "Error: send failed: %v\n", err)
			os.Exit(1)
		}

		echo, err := receiveData(ctx, initTransport, initSess)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: receive failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("← %s\n", string(echo))
	}

	_ = initTransport.Close()
	wg.Wait()
	if respErr != nil {
		fmt.Fprintf(os.Stderr, "Error: responder: %v\n", respErr)
		os.Exit(1)
	}
	if respSess != nil {
		_ = respSess.Close()
	}

	snap := collector.Snapshot()
	fmt.Println()
	fmt.Println("Session Statistics:")
	fmt.Printf("  Frames sealed: %d\n", snap.FramesSealed)
	fmt.Printf("  Frames opened: %d\n", snap.FramesOpened)
	fmt.Printf("  Bytes sent: %d\n", snap.BytesSent)
	fmt.Printf("  Bytes received: %d\n", snap.BytesReceived)
	fmt.Printf("  Rekeys completed: %d\n", snap.RekeysCompleted)
}

func runInitiator(ctx context.Context, t session.Transport, opts handshake.Options, collector *metrics.Collector, verbose bool) (*session.Session, error) {
	observer := metrics.NewSessionObserver(metrics.SessionObserverConfig{
		Collector: collector,
		Role:      "initiator",
	})

	hsCtx, done := observer.OnHandshakeStart(ctx)

	hs, err := handshake.NewInitiator(opts)
	if err != nil {
		done(err)
		return nil, err
	}

	msg1, err := hs.CreateMessage1()
	if err != nil {
		done(err)
		return nil, err
	}
	if err := t.Send(hsCtx, msg1); err != nil {
		done(err)
		return nil, err
	}

	msg2, err := t.Receive(hsCtx)
	if err != nil {
		done(err)
		return nil, err
	}
	msg3, err := hs.HandleMessage2(msg2)
	if err != nil {
		done(err)
		return nil, err
	}
	if err := t.Send(hsCtx, msg3); err != nil {
		done(err)
		return nil, err
	}

	result, err := hs.Result()
	if err != nil {
		done(err)
		return nil, err
	}
	done(nil)

	if verbose {
		fmt.Printf("  Transcript hash: %x...\n", result.TranscriptHash[:8])
	}

	sess, err := session.New(result, true, session.WithCollector(collector))
	if err != nil {
		observer.OnSessionFailed(err)
		return nil, err
	}
	observer.OnSessionStart()
	return sess, nil
}

func runResponder(ctx context.Context, t session.Transport, opts handshake.Options, collector *metrics.Collector, message string, frames int, verbose bool) (*session.Session, error) {
	observer := metrics.NewSessionObserver(metrics.SessionObserverConfig{
		Collector: collector,
		Role:      "responder",
	})

	hsCtx, done := observer.OnHandshakeStart(ctx)

	hs, err := handshake.NewResponder(opts)
	if err != nil {
		done(err)
		return nil, err
	}

	msg1, err := t.Receive(hsCtx)
	if err != nil {
		done(err)
		return nil, err
	}
	msg2, err := hs.HandleMessage1(msg1)
	if err != nil {
		done(err)
		return nil, err
	}
	if err := t.Send(hsCtx, msg2); err != nil {
		done(err)
		return nil, err
	}

	msg3, err := t.Receive(hsCtx)
	if err != nil {
		done(err)
		return nil, err
	}
	if err := hs.HandleMessage3(msg3); err != nil {
		done(err)
		return nil, err
	}

	result, err := hs.Result()
	if err != nil {
		done(err)
		return nil, err
	}
	done(nil)

	sess, err := session.New(result, false, session.WithCollector(collector))
	if err != nil {
		observer.OnSessionFailed(err)
		return nil, err
	}
	observer.OnSessionStart()
	defer observer.OnSessionEnd()

	// Echo loop: decrypt each data frame and seal the echo back.
	// Rekey frames are consumed inside OpenFrame.
	for received := 0; received < frames; {
		data, err := receiveData(ctx, t, sess)
		if err != nil {
			return sess, err
		}
		received++

		if verbose {
			fmt.Printf("  [responder] ← %q (%d bytes)\n", string(data), len(data))
		}

		echo, err := sess.SealFrame(frame.TypeData, 1, 0, append([]byte("Echo: "), data...))
		if err != nil {
			return sess, err
		}
		if err := t.Send(ctx, echo); err != nil {
			return sess, err
		}
	}

	return sess, nil
}

// receiveData reads frames until a data frame arrives; control and crypto
// frames are handled inside OpenFrame and skipped here.
func receiveData(ctx context.Context, t session.Transport, sess *session.Session) ([]byte, error) {
	for {
		wire, err := t.Receive(ctx)
		if err != nil {
			return nil, err
		}
		header, payload, err := sess.OpenFrame(wire)
		if err != nil {
			return nil, err
		}
		if header.FrameType.IsData() {
			return payload, nil
		}
	}
}

func setupObservability(logLevel, logFormat, tracing string) (*metrics.Collector, *metrics.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}

	format, err := parseLogFormat(logFormat)
	if err != nil {
		return nil, nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "shroud"}),
	)
	metrics.SetLogger(logger)

	switch strings.ToLower(tracing) {
	case "none":
		metrics.SetTracer(metrics.NoOpTracer{})
	case "simple":
		metrics.SetTracer(metrics.NewSimpleTracer())
	case "otel":
		if !metrics.OTelEnabled() {
			return nil, nil, fmt.Errorf("otel tracing not enabled (build with -tags otel)")
		}
		metrics.SetTracer(metrics.NewOTelTracer("shroud"))
	default:
		return nil, nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", tracing)
	}

	collector := metrics.NewCollector(metrics.Labels{
		"service": "shroud",
	})
	metrics.SetGlobal(collector)

	return collector, logger, nil
}

func parseLogLevel(level string) (metrics.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return metrics.LevelDebug, nil
	case "info":
		return metrics.LevelInfo, nil
	case "warn", "warning":
		return metrics.LevelWarn, nil
	case "error":
		return metrics.LevelError, nil
	case "silent", "off", "none":
		return metrics.LevelSilent, nil
	default:
		return metrics.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (metrics.Format, error) {
	switch strings.ToLower(format) {
	case "text":
		return metrics.FormatText, nil
	case "json":
		return metrics.FormatJSON, nil
	default:
		return metrics.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}

func parseSuiteName(name string) (suite.Suite, error) {
	switch strings.ToLower(name) {
	case "max-pq", "maxpq":
		return suite.SuiteMaxPQ, nil
	case "balanced-pq", "balancedpq":
		return suite.SuiteBalancedPQ, nil
	case "hardware-pq", "hardwarepq":
		return suite.SuiteHardwarePQ, nil
	case "classical":
		return suite.SuiteClassical, nil
	default:
		return 0, fmt.Errorf("unknown suite: %s (use max-pq, balanced-pq, hardware-pq, classical)", name)
	}
}
