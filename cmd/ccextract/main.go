// Command ccextract is the caption extraction entry point. By default
// it reads one input (file, concatenated files, or stdin), runs it
// through the caption decode pipeline (internal/pipeline's Batch), and
// writes the selected subtitle format to a file. When CCEXTRACT_LIVE_ADDR
// is set, it instead runs the live sink (SPEC_FULL.md §5/§6): an SRT
// ingest server feeding internal/pipeline's live relay, broadcasting
// decoded captions (and video/audio) to WebTransport/MOQ viewers instead
// of a file. Command-line flag parsing is explicitly out of scope
// (spec.md §1); configuration is read from environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zsiec/ccextract/internal/bytesource"
	"github.com/zsiec/ccextract/internal/config"
	"github.com/zsiec/ccextract/internal/pipeline"
	"github.com/zsiec/ccextract/internal/subtitle"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received signal, shutting down")
		cancel()
	}()

	code := run(ctx)
	os.Exit(int(code))
}

func run(ctx context.Context) config.ExitCode {
	cfg, inputPaths, err := configFromEnv()
	if err != nil {
		slog.Error("configuration error", "error", err)
		return config.ExitMalformedParameter
	}

	if cfg.OutputLive != "" {
		return runLive(ctx, cfg)
	}

	src, err := openSource(inputPaths, cfg)
	if err != nil {
		slog.Error("failed to open input", "error", err)
		return config.ExitReadError
	}
	defer src.Close()

	if cfg.OutputFilename == "" {
		slog.Error("CCEXTRACT_OUTPUT is required")
		return config.ExitIncompatibleParameters
	}
	out, err := os.Create(cfg.OutputFilename)
	if err != nil {
		slog.Error("failed to create output file", "error", err)
		return config.ExitFileCreationFailed
	}
	defer out.Close()

	writer, err := wrapEncoding(out, cfg)
	if err != nil {
		slog.Error("failed to set up output encoding", "error", err)
		return config.ExitFileCreationFailed
	}

	batch, err := pipeline.NewBatch(cfg, src, writer, slogNotifier{}, spuPNGOpener(cfg))
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		return config.ExitIncompatibleParameters
	}

	slog.Info("ccextract starting",
		"inputs", inputPaths,
		"output", cfg.OutputFilename,
		"format", cfg.WriteFormat,
	)

	if err := batch.Run(ctx); err != nil {
		slog.Error("pipeline error", "error", err)
		return config.ExitReadError
	}

	slog.Info("ccextract finished")
	return config.ExitOK
}

// spuPNGOpener returns the per-cue PNG file factory spupng output
// needs, or nil for every other format (NewBatch only dereferences it
// when cfg.WriteFormat is WriteSpuPNG).
func spuPNGOpener(cfg *config.Config) func(name string) (io.WriteCloser, error) {
	if cfg.WriteFormat != config.WriteSpuPNG {
		return nil
	}
	dir := "."
	if idx := strings.LastIndexByte(cfg.OutputFilename, '/'); idx >= 0 {
		dir = cfg.OutputFilename[:idx]
	}
	return func(name string) (io.WriteCloser, error) {
		return os.Create(dir + "/" + name)
	}
}

func wrapEncoding(out *os.File, cfg *config.Config) (io.Writer, error) {
	switch cfg.WriteFormat {
	case config.WriteRCWT, config.WriteRaw, config.WriteDVDRaw, config.WriteSpuPNG:
		// Binary/XML formats are not text-encoded per spec.md §4.8.
		return out, nil
	default:
		return subtitle.NewEncodingWriter(out, toSubtitleEncoding(cfg.Encoding))
	}
}

// toSubtitleEncoding converts config.Encoding to internal/subtitle's own
// Encoding type: the two packages define numerically matching but
// distinct named types, so config never imports subtitle just for this.
func toSubtitleEncoding(enc config.Encoding) subtitle.Encoding {
	switch enc {
	case config.EncodingUTF16LE:
		return subtitle.EncodingUTF16LE
	case config.EncodingLatin1:
		return subtitle.EncodingLatin1
	default:
		return subtitle.EncodingUTF8
	}
}

func configFromEnv() (*config.Config, []string, error) {
	cfg := &config.Config{
		Extract:          parseExtract(envOr("CCEXTRACT_FIELD", "12")),
		CCChannel:        int(envOrInt("CCEXTRACT_CHANNEL", 0)),
		WriteFormat:      parseWriteFormat(envOr("CCEXTRACT_FORMAT", "srt")),
		Encoding:         parseEncoding(envOr("CCEXTRACT_ENCODING", "utf8")),
		OutputFilename:   os.Getenv("CCEXTRACT_OUTPUT"),
		ScreensToProcess: envOrInt("CCEXTRACT_SCREENS", 0),
		BinaryConcat:     os.Getenv("CCEXTRACT_BINARY_CONCAT") != "",
		OutputLive:       os.Getenv("CCEXTRACT_LIVE_ADDR"),
	}

	if v := os.Getenv("CCEXTRACT_EXTRACTION_START"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, nil, fmt.Errorf("CCEXTRACT_EXTRACTION_START: %w", err)
		}
		cfg.ExtractionStart = d
	}
	if v := os.Getenv("CCEXTRACT_EXTRACTION_END"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, nil, fmt.Errorf("CCEXTRACT_EXTRACTION_END: %w", err)
		}
		cfg.ExtractionEnd = d
	}

	input := os.Getenv("CCEXTRACT_INPUT")
	if input == "" || input == "-" {
		cfg.InputSource = config.InputStdin
		return cfg, nil, nil
	}
	cfg.InputSource = config.InputFile
	return cfg, strings.Split(input, ","), nil
}

func openSource(paths []string, cfg *config.Config) (*bytesource.Source, error) {
	if cfg.InputSource == config.InputStdin {
		return bytesource.NewSingle(os.Stdin, bytesource.Options{}), nil
	}
	return bytesource.NewFiles(paths, bytesource.Options{})
}

func parseExtract(v string) config.Extract {
	switch v {
	case "1":
		return config.ExtractField1
	case "2":
		return config.ExtractField2
	default:
		return config.ExtractField12
	}
}

func parseWriteFormat(v string) config.WriteFormat {
	switch strings.ToLower(v) {
	case "sami":
		return config.WriteSAMI
	case "smptett", "ttml":
		return config.WriteSmpteTT
	case "transcript":
		return config.WriteTranscript
	case "rcwt":
		return config.WriteRCWT
	case "raw":
		return config.WriteRaw
	case "dvdraw":
		return config.WriteDVDRaw
	case "spupng":
		return config.WriteSpuPNG
	case "null":
		return config.WriteNull
	default:
		return config.WriteSRT
	}
}

func parseEncoding(v string) config.Encoding {
	switch strings.ToLower(v) {
	case "utf16le":
		return config.EncodingUTF16LE
	case "latin1":
		return config.EncodingLatin1
	default:
		return config.EncodingUTF8
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// slogNotifier implements config.Notifier by logging every event,
// replacing the original tool's GUI progress-reporting callbacks
// (spec.md §1 non-goal) with structured log lines.
type slogNotifier struct{}

func (slogNotifier) ProgramName(name string) {
	slog.Info("XDS program name", "name", name)
}
func (slogNotifier) CallLetters(letters string) {
	slog.Info("XDS call letters", "letters", letters)
}
func (slogNotifier) Progress(bytesProcessed, totalBytes int64) {
	slog.Debug("progress", "bytesProcessed", bytesProcessed, "totalBytes", totalBytes)
}
func (slogNotifier) SCTE35(description string, pts int64) {
	slog.Info("SCTE-35 event", "description", description, "pts", pts)
}
func (slogNotifier) Warning(component, message string) {
	slog.Warn(message, "component", component)
}
