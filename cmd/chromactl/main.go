// Command chromactl builds, previews and streams LED timelines without the
// HTTP service.
//
//	chromactl analyze -in track.mp3 -out track.json [-kind mode]
//	chromactl preview -in track.json -at 0,500,1000
//	chromactl stream  -in track.wav -mode compact [-url ws://192.168.4.1:81/]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/config"
	"github.com/mager/chromamind/logger"
	"github.com/mager/chromamind/preview"
	"github.com/mager/chromamind/show"
	"github.com/mager/chromamind/stream"
	"github.com/mager/chromamind/synth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "analyze":
		err = runAnalyze(cfg, args)
	case "preview":
		err = runPreview(cfg, args)
	case "stream":
		err = runStream(cfg, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chromactl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: chromactl analyze|preview|stream [flags]")
}

// setup builds a manager. The catalog is only used when a database is configured.
func setup(cfg config.Config) (*show.Manager, *stream.Scheduler, chromamind.Profile, *zap.SugaredLogger, error) {
	log := logger.ProvideLogger(cfg)
	profile, err := config.ProvideProfile(cfg)
	if err != nil {
		return nil, nil, profile, log, err
	}
	sched, err := stream.ProvideScheduler(cfg, stream.ProvideWebsocketDialer(cfg, log), log)
	if err != nil {
		return nil, nil, profile, log, err
	}
	store, err := catalog.ProvideStore(nil, log)
	if err != nil {
		return nil, nil, profile, log, err
	}
	m, err := show.ProvideManager(cfg, profile, sched, store, log)
	return m, sched, profile, log, err
}

// load publishes a timeline from an audio file, a saved document, or a
// synthetic beat sweep when in is "synth:<bpm>".
func load(ctx context.Context, m *show.Manager, in, name string) error {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	}
	switch {
	case strings.HasPrefix(in, "synth:"):
		bpm, err := strconv.ParseFloat(strings.TrimPrefix(in, "synth:"), 64)
		if err != nil {
			return errors.Wrapf(err, "synthetic tempo %q", in)
		}
		_, err = m.LoadPCM(ctx, synth.BeatSweep(22050, 8, bpm, 220, 880), show.Track{Name: name, Source: in})
		return err
	case strings.EqualFold(filepath.Ext(in), ".json"):
		f, err := os.Open(in)
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := chromamind.Load(f)
		if err != nil {
			return err
		}
		_, err = m.LoadDocument(doc, in)
		return err
	default:
		_, err := m.LoadFile(ctx, in, show.Track{Name: name})
		return err
	}
}

func runAnalyze(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := fs.String("in", "", "audio file (mp3, wav) or synth:<bpm>")
	out := fs.String("out", "", "output document, default stdout")
	name := fs.String("name", "", "timeline name")
	kind := fs.String("kind", string(chromamind.PayloadMatrix), "payload kind: matrix or mode")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}

	m, _, _, _, err := setup(cfg)
	if err != nil {
		return err
	}
	if err := load(context.Background(), m, *in, *name); err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return m.Export(w, chromamind.PayloadKind(*kind))
}

func runPreview(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	in := fs.String("in", "", "audio file, saved document or synth:<bpm>")
	at := fs.String("at", "0", "comma separated playback positions in ms")
	kind := fs.String("kind", "", "payload kind: matrix or mode, default whatever is loaded")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}

	m, _, profile, _, err := setup(cfg)
	if err != nil {
		return err
	}
	if err := load(context.Background(), m, *in, ""); err != nil {
		return err
	}

	k := chromamind.PayloadKind(*kind)
	if k == "" && m.Snapshot().Matrix == nil {
		k = chromamind.PayloadMode
	}
	for _, s := range strings.Split(*at, ",") {
		pos, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "position %q", s)
		}
		f, err := m.FrameAt(pos, k)
		if err != nil {
			return err
		}
		fmt.Println(preview.Frame(f, profile.MaxA))
	}
	return nil
}

func runStream(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	in := fs.String("in", "", "audio file, saved document or synth:<bpm>")
	mode := fs.String("mode", string(stream.Compact), "delivery mode: bulk or compact")
	url := fs.String("url", "", "device websocket URL, default from CHROMAMIND_DEVICE_URL")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}
	if *url != "" {
		cfg.DeviceURL = *url
	}

	m, sched, _, log, err := setup(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := load(ctx, m, *in, ""); err != nil {
		return err
	}
	st, err := m.StartStream(ctx, stream.Mode(*mode))
	if err != nil {
		return err
	}

	select {
	case <-st.Done():
	case <-ctx.Done():
		log.Infow("Interrupted, stopping stream")
		sched.Stop()
	}
	log.Infow("Stream ended", "status", st.Status(), "sent", st.Sent(), "skipped", st.Skipped())
	return st.Err()
}
