package main

import (
	"flag"
	"fmt"
	"os"

	pkgversion "github.com/shroudnet/shroud-go/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand()
	case "bench":
		benchCommand()
	case "example":
		exampleCommand()
	case "version":
		fmt.Printf("shroud version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`shroud - Hybrid Post-Quantum Transport Demo & Benchmark Tool

USAGE:
    shroud <command> [options]

COMMANDS:
    demo      Run two in-process peers through a full handshake and session
    bench     Run performance benchmarks
    example   Show example usage with explanations
    version   Print version information
    help      Show this help message

Run 'shroud <command> --help' for more information on a command.

EXAMPLES:
    # Run the two-peer demo with handshake details
    shroud demo --verbose

    # Run handshake benchmark
    shroud bench --handshakes 100

    # Run seal/open throughput benchmark
    shroud bench --throughput --size 1GB --duration 30s

    # Show interactive examples
    shroud example

PROJECT:
    Shroud - Hybrid Post-Quantum Secure Transport Core
    https://github.com/shroudnet/shroud-go

    Security: Noise XX (X25519) + ML-KEM-768/1024 hybrid KEM
    Defense-in-depth: Secure if EITHER algorithm is secure`)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	message := fs.String("message", "Hello from shroud!", "Message the initiator sends")
	frames := fs.Int("frames", 4, "Number of data frames to exchange")
	suiteName := fs.String("suite", "max-pq", "Cipher suite: max-pq, balanced-pq, hardware-pq, classical")
	rekey := fs.Bool("rekey", true, "Perform a DH rekey mid-stream")
	verbose := fs.Bool("verbose", false, "Verbose output")
	obsAddr := fs.String("obs-addr", "", "Observability server address (e.g. :9090). Empty disables")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: shroud demo [options]

Run two in-process peers through the three-message handshake, exchange
encrypted frames over a loopback transport, and optionally rekey.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Full demo with handshake details
    shroud demo --verbose

    # Classical-only suite, no rekey
    shroud demo --suite classical --rekey=false

    # Expose Prometheus metrics while the demo runs
    shroud demo --obs-addr :9090 --frames 1000`)
	}

	_ = fs.Parse(os.Args[2:])

	runDemo(*message, *frames, *suiteName, *rekey, *verbose, *obsAddr, *logLevel, *logFormat, *tracing)
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	handshakes := fs.Int("handshakes", 0, "Number of handshakes to benchmark (0 = skip)")
	throughput := fs.Bool("throughput", false, "Run seal/open throughput benchmark")
	size := fs.String("size", "100MB", "Data size for throughput test (e.g., 100MB, 1GB)")
	duration := fs.String("duration", "10s", "Duration for throughput test (e.g., 10s, 1m)")
	suiteName := fs.String("suite", "max-pq", "Cipher suite: max-pq, balanced-pq, hardware-pq, classical")

	fs.Usage = func() {
		fmt.Println(`USAGE: shroud bench [options]

Run performance benchmarks for handshake and frame seal/open throughput.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Benchmark 100 handshakes
    shroud bench --handshakes 100

    # Benchmark throughput for 30 seconds
    shroud bench --throughput --duration 30s

    # Benchmark 1GB with the classical suite
    shroud bench --throughput --size 1GB --suite classical

    # Run all benchmarks
    shroud bench --handshakes 100 --throughput --size 500MB`)
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*handshakes, *throughput, *size, *duration, *suiteName)
}

func exampleCommand() {
	if len(os.Args) > 2 && (os.Args[2] == "--help" || os.Args[2] == "-h") {
		fmt.Println(`USAGE: shroud example

Display interactive examples with code snippets showing how to use the library.

This command shows:
  - Handshake and session setup
  - Low-level hybrid KEM API usage
  - Security considerations
  - Common patterns`)
		return
	}

	showExamples()
}
