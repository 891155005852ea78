package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ccextract/internal/certs"
	"github.com/zsiec/ccextract/internal/config"
	"github.com/zsiec/ccextract/internal/distribution"
	"github.com/zsiec/ccextract/internal/ingest"
	srtingest "github.com/zsiec/ccextract/internal/ingest/srt"
	"github.com/zsiec/ccextract/internal/pipeline"
	"github.com/zsiec/ccextract/internal/stream"
)

// runLive replaces the file-output batch path with the live sink SPEC_FULL.md
// §5/§6 describes: incoming SRT publishers are demuxed and broadcast to
// WebTransport/MOQ viewers at cfg.OutputLive instead of being written to
// cfg.OutputFilename. It blocks until ctx is cancelled or a server fails.
func runLive(ctx context.Context, cfg *config.Config) config.ExitCode {
	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate self-signed certificate", "error", err)
		return config.ExitMalformedParameter
	}
	slog.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)

	srtAddr := envOr("CCEXTRACT_SRT_ADDR", ":6000")
	apiAddr := envOr("CCEXTRACT_API_ADDR", ":4444")
	webDir := envOr("CCEXTRACT_WEB_DIR", "web/dist")

	a := &liveApp{mgr: stream.NewManager(nil)}

	a.registry = ingest.NewRegistry(func(key string, input io.Reader, format ingest.InputFormat) {
		a.handleNewStream(ctx, key, input, format)
	})
	a.srtCaller = srtingest.NewCaller(a.registry, nil)

	a.distSrv, err = distribution.NewServer(distribution.ServerConfig{
		Addr:   cfg.OutputLive,
		WebDir: webDir,
		Cert:   cert,
		SRTPull: func(address, streamKey, streamID string) error {
			return a.srtCaller.Pull(ctx, srtingest.PullRequest{
				Address:   address,
				StreamKey: streamKey,
				StreamID:  streamID,
			})
		},
		SRTStop: func(streamKey string) error {
			return a.srtCaller.Stop(streamKey)
		},
		SRTList:      a.listSRTPulls,
		StreamLister: a.listStreams,
		IngestLookup: a.lookupIngest,
	})
	if err != nil {
		slog.Error("failed to create distribution server", "error", err)
		return config.ExitMalformedParameter
	}

	srtSrv := srtingest.NewServer(srtAddr, a.registry, nil)

	apiSrv := &http.Server{
		Addr:    apiAddr,
		Handler: a.distSrv.APIHandler(),
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert.TLSCert},
		},
	}

	slog.Info("ccextract live relay starting",
		"srt", srtAddr,
		"webtransport", cfg.OutputLive,
		"api", apiAddr,
		"cert_hash", cert.FingerprintBase64(),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srtSrv.Start(ctx) })
	g.Go(func() error {
		if err := apiSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return a.distSrv.Start(ctx) })

	if err := g.Wait(); err != nil {
		slog.Error("live relay error", "error", err)
		return config.ExitReadError
	}
	return config.ExitOK
}

// liveApp wires a stream registry, SRT ingest, and WebTransport
// distribution server together the way cmd/ccextract's batch path wires
// a single Batch pipeline, but for an arbitrary number of concurrent
// live publishers instead of one file.
type liveApp struct {
	mgr       *stream.Manager
	registry  *ingest.Registry
	srtCaller *srtingest.Caller
	distSrv   *distribution.Server
}

func (a *liveApp) listSRTPulls() []distribution.SRTPullInfo {
	pulls := a.srtCaller.ActivePulls()
	out := make([]distribution.SRTPullInfo, len(pulls))
	for i, p := range pulls {
		out[i] = distribution.SRTPullInfo{
			Address:   p.Address,
			StreamKey: p.StreamKey,
			StreamID:  p.StreamID,
		}
	}
	return out
}

func (a *liveApp) listStreams() []distribution.StreamInfo {
	streams := a.mgr.List()
	infos := make([]distribution.StreamInfo, len(streams))
	for i, s := range streams {
		relay := a.distSrv.GetRelay(s.Key)
		viewers := 0
		if relay != nil {
			viewers = relay.ViewerCount()
		}
		info := distribution.StreamInfo{Key: s.Key, Viewers: viewers}

		if p := a.distSrv.GetPipeline(s.Key); p != nil {
			snap := p.StreamSnapshot()
			info.VideoCodec = snap.Video.Codec
			info.Width = snap.Video.Width
			info.Height = snap.Video.Height
			info.AudioTracks = len(snap.Audio)
			for _, audio := range snap.Audio {
				info.AudioChannels += audio.Channels
			}
			info.HasCaptions = snap.Captions.TotalFrames > 0
			info.CaptionChannels = snap.Captions.ActiveChannels
			info.HasSCTE35 = snap.SCTE35.TotalEvents > 0
			info.Protocol = snap.Protocol
			info.UptimeMs = snap.UptimeMs
			info.Description = buildStreamDescription(info)
		}

		infos[i] = info
	}
	return infos
}

func (a *liveApp) lookupIngest(key string) *distribution.IngestDebugStats {
	s, ok := a.registry.Get(key)
	if !ok {
		return nil
	}
	stats := s.IngestStats()
	return &distribution.IngestDebugStats{
		BytesReceived: stats.BytesReceived,
		ReadCount:     stats.ReadCount,
		ConnectedAt:   stats.ConnectedAt,
		UptimeMs:      stats.UptimeMs,
		RemoteAddr:    stats.RemoteAddr,
	}
}

func (a *liveApp) handleNewStream(ctx context.Context, key string, input io.Reader, format ingest.InputFormat) {
	slog.Info("new live stream", "key", key)

	if _, created := a.mgr.Create(key); !created {
		slog.Warn("rejecting duplicate stream connection", "key", key)
		return
	}
	defer func() {
		a.distSrv.UnregisterStream(key)
		a.mgr.Remove(key)
	}()

	relay := a.distSrv.RegisterStream(key)

	p := pipeline.New(key, input, relay)
	p.SetProtocol("SRT")
	a.distSrv.SetPipeline(key, p)

	if err := p.Run(ctx); err != nil {
		slog.Error("pipeline error", "stream", key, "error", err)
	}
	slog.Info("live stream ended", "key", key)
}

func buildStreamDescription(info distribution.StreamInfo) string {
	var parts []string

	if info.Width > 0 && info.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", info.Width, info.Height))
	}
	if info.AudioTracks > 0 {
		if info.AudioTracks == 1 {
			parts = append(parts, "1 audio track")
		} else {
			parts = append(parts, fmt.Sprintf("%d audio tracks", info.AudioTracks))
		}
	}
	if info.HasCaptions {
		if n := len(info.CaptionChannels); n > 0 {
			parts = append(parts, fmt.Sprintf("CC (%d ch)", n))
		} else {
			parts = append(parts, "CC")
		}
	}
	if info.HasSCTE35 {
		parts = append(parts, "SCTE-35")
	}

	return strings.Join(parts, " · ")
}
