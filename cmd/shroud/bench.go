package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shroudnet/shroud-go/pkg/frame"
	"github.com/shroudnet/shroud-go/pkg/handshake"
	"github.com/shroudnet/shroud-go/pkg/session"
	"github.com/shroudnet/shroud-go/pkg/suite"
)

func runBench(handshakes int, throughputTest bool, sizeStr, durationStr, suiteName string) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Shroud Transport Benchmark                          ║")
	fmt.Println("║      Noise XX + Hybrid ML-KEM                            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	chosen, err := parseSuiteName(suiteName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if handshakes == 0 && !throughputTest {
		fmt.Println("No benchmarks specified. Use --handshakes or --throughput")
		fmt.Println("Run 'shroud bench --help' for usage")
		os.Exit(1)
	}

	if handshakes > 0 {
		benchHandshakes(handshakes, chosen)
		fmt.Println()
	}

	if throughputTest {
		size := parseSize(sizeStr)
		duration := parseDuration(durationStr)
		benchThroughput(size, duration, chosen)
	}
}

// completeHandshake runs the full three-message exchange in-process and
// returns both session sides.
func completeHandshake(s suite.Suite) (*session.Session, *session.Session, error) {
	opts := handshake.Options{Suites: []suite.Suite{s}}

	init, err := handshake.NewInitiator(opts)
	if err != nil {
		return nil, nil, err
	}
	resp, err := handshake.NewResponder(opts)
	if err != nil {
		return nil, nil, err
	}

	msg1, err := init.CreateMessage1()
	if err != nil {
		return nil, nil, err
	}
	msg2, err := resp.HandleMessage1(msg1)
	if err != nil {
		return nil, nil, err
	}
	msg3, err := init.HandleMessage2(msg2)
	if err != nil {
		return nil, nil, err
	}
	if err := resp.HandleMessage3(msg3); err != nil {
		return nil, nil, err
	}

	ri, err := init.Result()
	if err != nil {
		return nil, nil, err
	}
	rr, err := resp.Result()
	if err != nil {
		return nil, nil, err
	}

	si, err := session.New(ri, true)
	if err != nil {
		return nil, nil, err
	}
	sr, err := session.New(rr, false)
	if err != nil {
		_ = si.Close()
		return nil, nil, err
	}
	return si, sr, nil
}

func benchHandshakes(count int, s suite.Suite) {
	fmt.Printf("Benchmarking Handshakes (%d iterations, suite: %s)\n", count, s)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println()

	durations := make([]time.Duration, count)
	errors := 0

	startTime := time.Now()
	for i := 0; i < count; i++ {
		handshakeStart := time.Now()

		si, sr, err := completeHandshake(s)
		if err != nil {
			errors++
			durations[i] = 0
			continue
		}

		durations[i] = time.Since(handshakeStart)
		_ = si.Close()
		_ = sr.Close()

		// Progress indicator every 10% (or every iteration if count < 10)
		step := count / 10
		if step == 0 {
			step = 1
		}
		if (i+1)%step == 0 || i == count-1 {
			fmt.Printf("Progress: %d/%d (%.0f%%)\r", i+1, count, float64(i+1)/float64(count)*100)
		}
	}
	fmt.Println()

	totalTime := time.Since(startTime)
	successCount := count - errors
	printHandshakeResults(count, successCount, errors, totalTime, durations)
}

func printHandshakeResults(total, successful, failed int, totalTime time.Duration, durations []time.Duration) {
	if failed == total {
		fmt.Fprintf(os.Stderr, "All handshakes failed\n")
		os.Exit(1)
	}

	var sum, minD, maxD time.Duration
	minD = time.Hour // Initialize to large value

	for _, d := range durations {
		if d == 0 {
			continue
		}
		sum += d
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
	}

	avg := sum / time.Duration(successful)

	fmt.Println("\nResults:")
	fmt.Printf("  Total handshakes: %d\n", total)
	fmt.Printf("  Successful: %d\n", successful)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Printf("  Total time: %v\n", totalTime)
	fmt.Println()
	fmt.Println("Handshake Performance:")
	fmt.Printf("  Average: %v\n", avg)
	fmt.Printf("  Minimum: %v\n", minD)
	fmt.Printf("  Maximum: %v\n", maxD)
	fmt.Printf("  Throughput: %.2f handshakes/sec\n", float64(successful)/totalTime.Seconds())
	fmt.Println()

	printHandshakeRating(avg)
}

func printHandshakeRating(avg time.Duration) {
	if avg < 2*time.Millisecond {
		fmt.Println("✓ Performance: Excellent (< 2ms avg)")
	} else if avg < 5*time.Millisecond {
		fmt.Println("✓ Performance: Good (< 5ms avg)")
	} else if avg < 10*time.Millisecond {
		fmt.Println("⚠ Performance: Acceptable (< 10ms avg)")
	} else {
		fmt.Println("⚠ Performance: Slow (> 10ms avg)")
	}
}

func benchThroughput(totalBytes int64, duration time.Duration, s suite.Suite) {
	fmt.Printf("Benchmarking Seal/Open Throughput\n")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Target: %s over %v\n", formatSize(totalBytes), duration)
	fmt.Printf("Suite: %s\n\n", s)

	sender, receiver, err := completeHandshake(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: handshake failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = sender.Close() }()
	defer func() { _ = receiver.Close() }()

	// Data chunk (8KB)
	chunkSize := 8192
	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = byte(i % 256)
	}

	var totalSealed, totalOpened int64
	lastProgress := time.Now()
	start := time.Now()

	for totalSealed < totalBytes && time.Since(start) < duration {
		wire, err := sender.SealFrame(frame.TypeData, 1, 0, chunk)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Seal error: %v\n", err)
			break
		}
		totalSealed += int64(chunkSize)

		_, payload, err := receiver.OpenFrame(wire)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Open error: %v\n", err)
			break
		}
		totalOpened += int64(len(payload))

		// Progress update every second
		if time.Since(lastProgress) >= time.Second {
			elapsed := time.Since(start)
			mbps := float64(totalSealed) / elapsed.Seconds() / 1024 / 1024
			fmt.Printf("Progress: %s / %s (%.1f MB/s)\r",
				formatSize(totalSealed), formatSize(totalBytes), mbps)
			lastProgress = time.Now()
		}
	}

	elapsed := time.Since(start)
	printThroughputResults(totalSealed, totalOpened, elapsed)
}

func printThroughputResults(totalSealed, totalOpened int64, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("\nResults:")
	fmt.Printf("  Data sealed: %s\n", formatSize(totalSealed))
	fmt.Printf("  Data opened: %s\n", formatSize(totalOpened))
	fmt.Printf("  Duration: %v\n", elapsed)
	fmt.Println()

	if elapsed > 0 {
		mbps := float64(totalSealed) / elapsed.Seconds() / 1024 / 1024
		fmt.Printf("Round-trip Throughput: %.2f MB/s (%.2f Mbps)\n", mbps, mbps*8)
		printThroughputRating(mbps)
	}
}

func printThroughputRating(avgMBps float64) {
	fmt.Println()
	if avgMBps > 500 {
		fmt.Println("✓ Performance: Excellent (> 500 MB/s)")
	} else if avgMBps > 200 {
		fmt.Println("✓ Performance: Good (> 200 MB/s)")
	} else if avgMBps > 50 {
		fmt.Println("✓ Performance: Acceptable (> 50 MB/s)")
	} else {
		fmt.Println("⚠ Performance: May need optimization (< 50 MB/s)")
	}
}

func parseSize(s string) int64 {
	// Simple parser for sizes like "100MB", "1GB"
	var value int64
	var unit string
	_, _ = fmt.Sscanf(s, "%d%s", &value, &unit)

	switch unit {
	case "KB", "kb", "K", "k":
		return value * 1024
	case "MB", "mb", "M", "m":
		return value * 1024 * 1024
	case "GB", "gb", "G", "g":
		return value * 1024 * 1024 * 1024
	default:
		return value
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %s\n", s)
		os.Exit(1)
	}
	return d
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}
