// cmd/pokerbank is the interactive client: it hosts, joins, or watches a game from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/config"
	"github.com/jason-s-yu/pokerbank/internal/dispatch"
	"github.com/jason-s-yu/pokerbank/internal/game"
	"github.com/jason-s-yu/pokerbank/internal/localcache"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
	"github.com/jason-s-yu/pokerbank/internal/syncagent"
)

func main() {
	nameFlag := flag.String("name", "", "your display name")
	codeFlag := flag.String("code", "", "game code to join or watch")
	moneyFlag := flag.Int64("money", -1, "starting money for a hosted game (default INITIAL_MONEY)")
	seatFlag := flag.Bool("seat", false, "when hosting, also take a seat at the table")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [OPTIONS] host|join|spectate\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	mode := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	tracker = cfg.Tracker()
	if cfg.LogLevel == "info" {
		// keep the terminal for the table; warnings still get through
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, mode, *nameFlag, game.NormalizeGameCode(*codeFlag), *moneyFlag, *seatFlag); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, mode, name, code string, money int64, seat bool) error {
	name = strings.TrimSpace(name)
	if name == "" && mode != "spectate" {
		name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your name").Show()
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("a name is required")
		}
	}
	if money < 0 {
		money = cfg.InitialMoney
	}

	backend, err := cfg.OpenBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	st := backend.Store
	if cache, err := localcache.Open(cfg.CachePath); err != nil {
		logger.Warnf("local cache disabled: %v", err)
	} else {
		defer cache.Close()
		st = store.NewFallback(backend.Store, cache, logger)
	}

	self, err := newIdentity(mode, name, seat)
	if err != nil {
		return err
	}

	if mode == "host" {
		if code, err = createGame(ctx, backend, st, name, money); err != nil {
			return err
		}
		pterm.Success.Printfln("Game created. Share the code %s", pterm.LightYellow(code))
	} else if !game.ValidGameCode(code) {
		return fmt.Errorf("a valid -code is required to %s", mode)
	}

	ended := make(chan string, 2)
	agent := syncagent.New(st, code, self,
		syncagent.WithLogger(logger),
		syncagent.WithInterval(cfg.PollInterval),
		syncagent.WithTracker(cfg.Tracker()),
		syncagent.OnKicked(func() { ended <- "You were removed from the game by the host." }),
		syncagent.OnCancelled(func() { ended <- "The game has ended." }),
	)
	if err := agent.Load(ctx); err != nil {
		return fmt.Errorf("load game %s: %w", code, err)
	}

	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	if backend.Recorder != nil {
		opts = append(opts, dispatch.WithRecorder(backend.Recorder))
	}
	d := dispatch.New(agent, self, opts...)

	switch {
	case self.IsSpectator():
		_, err = d.Spectate(ctx)
	case self.Role == models.RolePlayer || seat:
		_, err = d.Join(ctx, name)
	}
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- agent.Run(runCtx, backend.Watcher) }()

	render(agent.State(), self)
	pterm.Info.Println("type help for commands")

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			cancel()
			return <-done
		case msg := <-ended:
			pterm.Warning.Println(msg)
		case err := <-done:
			if errors.Is(err, syncagent.ErrKicked) || errors.Is(err, syncagent.ErrGameEnded) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				cancel()
				return <-done
			}
			err := execute(ctx, d, line)
			if errors.Is(err, errQuit) {
				if self.IsHost() && confirmCancel() {
					if _, err := d.Cancel(ctx, "host left"); err != nil {
						pterm.Error.Println(err)
					}
					_ = agent.Sync(ctx)
				}
				cancel()
				return <-done
			}
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			if line = strings.TrimSpace(line); line != "" && line != "show" && line != "help" {
				render(agent.State(), self)
			}
		}
	}
}

// newIdentity picks the role for mode. A host only gets a player id when it takes a seat.
func newIdentity(mode, name string, seat bool) (models.Identity, error) {
	self := models.Identity{Name: name}
	switch mode {
	case "host":
		self.Role = models.RoleHost
		if seat {
			self.ID = uuid.NewString()
		}
	case "join":
		self.Role, self.ID = models.RolePlayer, uuid.NewString()
	case "spectate":
		self.Role, self.ID = models.RoleSpectator, uuid.NewString()
	default:
		return models.Identity{}, fmt.Errorf("unknown mode %q", mode)
	}
	return self, nil
}

// createGame publishes a fresh game and returns its code. The http backend lets the server choose
// the code; other backends try random codes until one is free.
func createGame(ctx context.Context, backend *config.Backend, st store.StateStore, host string, money int64) (string, error) {
	if backend.HTTP != nil {
		created, err := backend.HTTP.CreateGame(ctx, host, &money)
		if err != nil {
			return "", err
		}
		return created.GameCode, nil
	}
	for attempt := 0; attempt < 5; attempt++ {
		code := game.NewGameCode()
		creator := syncagent.New(st, code, models.Identity{Role: models.RoleHost, Name: host})
		err := creator.Create(ctx, game.NewGame(code, host, money, models.Millis(time.Now())))
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
	}
	return "", errors.New("could not find a free game code")
}

func confirmCancel() bool {
	ok, _ := pterm.DefaultInteractiveConfirm.WithDefaultText("Cancel the game for everyone?").Show()
	return ok
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}
