package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/satindergrewal/segue/internal/audio"
	"github.com/satindergrewal/segue/internal/audition"
	"github.com/satindergrewal/segue/internal/batch"
	"github.com/satindergrewal/segue/internal/cli"
	"github.com/satindergrewal/segue/internal/config"
	"github.com/satindergrewal/segue/internal/stream"
	"github.com/satindergrewal/segue/internal/study"
	"github.com/satindergrewal/segue/internal/transition"
	"github.com/satindergrewal/segue/internal/ui"
	"github.com/satindergrewal/segue/internal/web"
)

var version = "0.1.0"

// CLI defines the command-line interface
type CLI struct {
	Version bool `short:"v" help:"Show version information"`

	Render   RenderCmd   `cmd:"" default:"withargs" help:"Render a beat-matched transition for every pair in the table"`
	Study    StudyCmd    `cmd:"" help:"Shuffle rendered transitions into an anonymized listener set"`
	Audition AuditionCmd `cmd:"" help:"Play the listener set over HTTP and WebRTC and collect ratings"`
}

// RenderCmd renders the pair table.
type RenderCmd struct {
	Pairs    string `short:"p" type:"path" default:"${pairs}" help:"Pair table CSV"`
	AudioDir string `type:"path" default:"${audio_dir}" help:"Directory holding <track id>.<ext> files"`
	AudioExt string `default:"${audio_ext}" help:"Extension of the source tracks"`
	Output   string `short:"o" type:"path" default:"${output}" help:"Output directory"`
	Format   string `short:"f" enum:"mp3,flac,wav,opus" default:"${format}" help:"Output format"`
	Workers  int    `short:"j" default:"${workers}" help:"Pairs rendered concurrently"`
	Seed     int64  `default:"${seed}" help:"Segment selection seed, negative for random"`
	NoTUI    bool   `name:"no-tui" help:"Log to the terminal instead of showing progress"`
}

func (c *RenderCmd) Run(cfg *config.Config) error {
	cfg.PairsFile = c.Pairs
	cfg.AudioDir = c.AudioDir
	cfg.AudioExt = c.AudioExt
	cfg.OutputDir = c.Output
	cfg.OutputFormat = c.Format
	cfg.Workers = c.Workers
	cfg.Seed = c.Seed
	if err := cfg.Validate(); err != nil {
		return err
	}

	pairs, err := batch.LoadPairs(cfg.PairsFile)
	if err != nil {
		return err
	}
	engine, err := transition.NewEngine(cfg.Transition())
	if err != nil {
		return err
	}
	enc, err := audio.NewEncoder(cfg.OutputFormat)
	if err != nil {
		return err
	}
	runner := batch.NewRunner(engine, audio.NewFFmpegDecoder(cfg.SampleRate), enc, batch.Options{
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
		OutputDir: cfg.OutputDir,
		Format:    cfg.OutputFormat,
		Resolve:   batch.DirResolver(cfg.AudioDir, cfg.AudioExt),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.NoTUI {
		report, err := runner.Run(ctx, pairs)
		if report != nil {
			cli.PrintSummary(os.Stdout, report)
		}
		return err
	}

	// Keep the TUI clean
	debugLog, err := os.Create("segue-debug.log")
	if err != nil {
		return err
	}
	defer debugLog.Close()
	log.SetOutput(debugLog)
	defer log.SetOutput(os.Stderr)

	p := tea.NewProgram(ui.NewModel(pairs))
	runner.OnEvent(ui.Forward(p.Send))

	var (
		report *batch.Report
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		report, runErr = runner.Run(ctx, pairs)
		p.Send(ui.AllDoneMsg{Report: report, Err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("UI error: %w", err)
	}
	// q or ctrl+c leaves the UI before the run finishes
	cancel()
	<-done

	if report != nil {
		cli.PrintSummary(os.Stdout, report)
	}
	return runErr
}

// StudyCmd prepares the blind listener set.
type StudyCmd struct {
	Pairs  string `short:"p" type:"path" default:"${pairs}" help:"Pair table CSV"`
	Output string `short:"o" type:"path" default:"${output}" help:"Directory of rendered transitions"`
	Format string `short:"f" enum:"mp3,flac,wav,opus" default:"${format}" help:"Extension of the rendered transitions"`
	Dir    string `short:"d" type:"path" default:"${study_dir}" help:"Listener set directory"`
	Key    string `short:"k" type:"path" default:"${study_key}" help:"Master key CSV (keep it from listeners)"`
	Seed   int64  `default:"${study_seed}" help:"Shuffle seed"`
}

func (c *StudyCmd) Run(cfg *config.Config) error {
	pairs, err := batch.LoadPairs(c.Pairs)
	if err != nil {
		return err
	}
	key, err := study.Prepare(pairs, study.Options{
		SourceDir: c.Output,
		StudyDir:  c.Dir,
		Ext:       c.Format,
		Seed:      c.Seed,
	})
	if err != nil {
		return err
	}
	if len(key) == 0 {
		return errors.New("no rendered transitions found; run segue render first")
	}
	if err := study.WriteKey(c.Key, key); err != nil {
		return err
	}
	cli.PrintStudy(os.Stdout, c.Dir, c.Key, key)
	return nil
}

// AuditionCmd serves the listener set.
type AuditionCmd struct {
	Dir    string        `short:"d" type:"path" default:"${study_dir}" help:"Listener set directory"`
	Key    string        `short:"k" type:"path" default:"${study_key}" help:"Master key CSV written by segue study"`
	Port   int           `default:"${port}" help:"HTTP port"`
	Gap    time.Duration `default:"3s" help:"Silence between clips"`
	Ramp   time.Duration `default:"50ms" help:"Fade at clip edges"`
	FFmpeg string        `name:"ffmpeg" default:"ffmpeg" help:"ffmpeg binary used for the HTTP stream"`
}

func (c *AuditionCmd) Run(cfg *config.Config) error {
	key, err := study.ReadKey(c.Key)
	if err != nil {
		return err
	}
	clips := audition.ClipsFromKey(c.Dir, key)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	player := audition.NewPlayer(c.Ramp, c.Gap)
	go func() {
		for _, clip := range clips {
			if player.Enqueue(ctx, clip) != nil {
				return
			}
		}
		player.Close()
	}()
	go player.Run(ctx)

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, player.Frames())

	ratings := audition.NewRatingLog(filepath.Join(c.Dir, audition.RatingsName))
	srv := audition.NewServer(player, ratings, broadcaster, clips, web.IndexHTML, c.FFmpeg)

	addr := ":" + strconv.Itoa(c.Port)
	server := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("Audition of %d clips live on %s (ratings: %s)", len(clips), addr, ratings.Path())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func main() {
	cfg := config.Load()

	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("segue"),
		kong.Description("Beat-matched DJ transition renderer"),
		kong.UsageOnError(),
		kong.Vars{
			"version":    version,
			"pairs":      cfg.PairsFile,
			"audio_dir":  cfg.AudioDir,
			"audio_ext":  cfg.AudioExt,
			"output":     cfg.OutputDir,
			"format":     cfg.OutputFormat,
			"workers":    strconv.Itoa(cfg.Workers),
			"seed":       strconv.FormatInt(cfg.Seed, 10),
			"study_dir":  cfg.StudyDir,
			"study_key":  study.KeyName,
			"study_seed": strconv.FormatInt(cfg.StudySeed, 10),
			"port":       strconv.Itoa(cfg.Port),
		},
		kong.Bind(&cfg),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(os.Stdout, version)
		os.Exit(0)
	}

	if err := ctx.Run(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
