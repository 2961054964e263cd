package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/claude/workoutpal/internal/catalog"
	"github.com/claude/workoutpal/internal/config"
	"github.com/claude/workoutpal/internal/history"
	"github.com/claude/workoutpal/internal/session"
	"github.com/claude/workoutpal/internal/storage"
	"github.com/claude/workoutpal/internal/voice"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = "commands: <enter> start  p pause  r resume  s skip  q quit"

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	workoutID := flag.String("workout", "", "id of the workout to run")
	list := flag.Bool("list", false, "list available workouts and exit")
	quiet := flag.Bool("quiet", false, "disable voice cues")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("workoutpal-run", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadLocal(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	if *list || *workoutID == "" {
		for _, w := range cat.List(catalog.Filter{}) {
			fmt.Printf("%-22s %-24s %-12s %-12s ~%d min\n", w.ID, w.Name, w.Category, w.Difficulty, w.EstimatedDuration)
		}
		if !*list {
			fmt.Fprintf(os.Stderr, "\nUsage: workoutpal-run -workout <id> [-config <file>] [-quiet]\n")
			os.Exit(1)
		}
		return
	}

	w, ok := cat.Get(*workoutID)
	if !ok {
		log.Error("unknown workout", "id", *workoutID)
		os.Exit(1)
	}

	local, err := storage.OpenLocal(cfg.Local.Dir, log)
	if err != nil {
		log.Error("failed to open local cache", "dir", cfg.Local.Dir, "error", err)
		os.Exit(1)
	}
	defer local.Close()

	ctx := context.Background()
	prefs := local.Preferences(ctx)
	store := history.New(local, nil, nil, log)

	machine, initial, err := session.NewMachine(w, session.Config{
		VoiceEnabled:       prefs.VoiceEnabled && !*quiet,
		DefaultSetSeconds:  cfg.Session.DefaultSetSeconds,
		DefaultRestSeconds: cfg.Session.DefaultRestSeconds,
		Language:           cfg.Speech.Language,
	})
	if err != nil {
		log.Error("cannot run workout", "error", err)
		os.Exit(1)
	}

	done := make(chan session.Completion, 1)
	runner := session.NewRunner(machine, initial, session.RunnerOptions{
		Speaker: voice.NewLogSpeaker(log, voice.Options{
			Rate:     cfg.Speech.Rate,
			Pitch:    cfg.Speech.Pitch,
			Language: cfg.Speech.Language,
		}),
		History:     store,
		Snapshots:   local,
		Log:         log,
		AutoAdvance: cfg.Session.AutoAdvance,
		OnChange:    func(s session.State) { render(machine, s) },
		OnComplete:  func(c session.Completion) { done <- c },
	})

	fmt.Printf("%s: %d exercises, about %d min\n%s\n", w.Name, len(w.Exercises), w.EstimatedDuration, usage)
	if err := runner.Start(); err != nil {
		log.Error("start failed", "error", err)
		os.Exit(1)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case c := <-done:
			fmt.Println()
			fmt.Println(c.Message)
			runner.Close()
			runner.Flush()
			return
		case <-quit:
			abandon(runner, local, log)
			return
		case line, ok := <-lines:
			if !ok || line == "q" {
				abandon(runner, local, log)
				return
			}
			if err := dispatch(runner, line); err != nil {
				if errors.Is(err, session.ErrInvalidCommand) {
					fmt.Printf("\n%v\n", err)
					continue
				}
				fmt.Printf("\n%s\n", usage)
			}
		}
	}
}

func dispatch(r *session.Runner, line string) error {
	switch line {
	case "":
		return r.Start()
	case "p":
		return r.Pause()
	case "r":
		return r.Resume()
	case "s":
		return r.Skip()
	default:
		return fmt.Errorf("unknown command %q", line)
	}
}

func abandon(r *session.Runner, local *storage.Local, log *slog.Logger) {
	r.Close()
	r.Flush()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := local.ClearCurrentSession(ctx); err != nil {
		log.Warn("clearing session snapshot", "error", err)
	}
	fmt.Println("\nworkout abandoned")
}

func render(m *session.Machine, s session.State) {
	ex := m.Exercise(s)
	total := len(m.Workout().Exercises)
	switch s.Phase {
	case session.PhaseReady:
		fmt.Printf("\n[%d/%d] %s: press enter to start\n", s.ExerciseIndex+1, total, ex.Name)
	case session.PhaseCompleted:
		fmt.Printf("\rcompleted %d/%d exercises in %d:%02d          ", s.CompletedCount(), total, s.Elapsed/60, s.Elapsed%60)
	default:
		fmt.Printf("\r[%d/%d] %-20s set %d/%d  %-8s %02d:%02d  elapsed %d:%02d ",
			s.ExerciseIndex+1, total, ex.Name, s.Set, ex.Sets, s.Phase,
			s.TimeLeft/60, s.TimeLeft%60, s.Elapsed/60, s.Elapsed%60)
	}
}
