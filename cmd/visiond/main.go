package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/vision/internal/config"
	"github.com/l1jgo/vision/internal/core/event"
	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/data"
	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/metrics"
	"github.com/l1jgo/vision/internal/perception"
	"github.com/l1jgo/vision/internal/persist"
	"github.com/l1jgo/vision/internal/scripting"
	"github.com/l1jgo/vision/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name, sceneID string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              visiond  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     lighting · visibility · fog ledger    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mhost:\033[0m %s \033[90m(scene: %s)\033[0m\n\n", name, sceneID)
}

func printSection(title string) {
	lineLen := max(3, 46-len(title)-1)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(3, 42-len(label)-len(numStr))
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main host logic ───────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/vision.toml"
	if p := os.Getenv("VISION_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load the scene document
	doc, err := data.LoadScene(cfg.Scene.Path)
	if err != nil {
		return err
	}
	if cfg.Server.SceneID != "" {
		doc.ID = cfg.Server.SceneID
	}
	printBanner(cfg.Server.Name, doc.ID)

	printSection("scene")
	printStat("lighting regions", len(doc.Lights))
	printStat("limit regions", len(doc.Limits))
	printStat("sources", len(doc.Sources))
	for _, w := range doc.Warnings {
		log.Warn("scene", zap.String("warning", w))
	}
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Fog store: PostgreSQL when configured, memory otherwise
	printSection("storage")
	var store fog.Store
	if cfg.Database.DSN != "" {
		dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
		defer dbCancel()

		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(dbCtx, db)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("migrations applied (schema v%d)", version))
		store = persist.NewFogRepo(db)
	} else {
		store = fog.NewMemoryStore()
		printOK("fog kept in memory (no database configured)")
	}
	fmt.Println()

	// 5. Scripts
	opts := perception.Options{
		Tolerance:      cfg.Perception.Tolerance,
		Unrestricted:   cfg.Perception.UnrestrictedObserver,
		FogExploration: cfg.Perception.FogExploration,
		MaxImageSize:   cfg.Perception.FogMaxImageSize,
		Resolution:     cfg.Perception.FogResolution,
	}
	if cfg.Scene.ScriptDir != "" {
		lua, err := scripting.NewEngine(cfg.Scene.ScriptDir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer lua.Close()
		opts.Curve = lua.Curve()
		if lua.Has("can_explore") {
			opts.ExploreFilter = func(id string, p geom.Point) bool {
				return lua.ExploreAllowed(id, p.X, p.Y)
			}
		}
		printOK(fmt.Sprintf("lua scripts loaded from %s", cfg.Scene.ScriptDir))
	}

	// 6. Build the scene and restore its fog
	bus := event.NewBus()
	scene, err := perception.New(doc, store, bus, opts, log)
	if err != nil {
		return err
	}
	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	err = scene.Load(loadCtx)
	loadCancel()
	if err != nil {
		// 迷霧從空白開始，下一次存檔會覆蓋損壞的紀錄。
		log.Error("fog restore failed", zap.Error(err))
	}
	printStat("explored cells", scene.Fog.Len())
	subscribeLogging(bus, log)

	// 7. Systems
	lightingSys := system.NewLightingSystem(scene, log)
	runner := coresys.NewRunner()
	runner.OnPhase = func(phase coresys.Phase, took time.Duration) {
		metrics.PhaseDuration.WithLabelValues(phase.String()).Observe(took.Seconds())
	}
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(lightingSys)
	runner.Register(system.NewVisionSystem(scene, log))
	runner.Register(system.NewFogSystem(scene, cfg.Perception.FogCommitThreshold, log))
	runner.Register(system.NewPersistenceSystem(scene, cfg.Perception.FogSaveDebounce, log))

	if cfg.Scene.Watch {
		w, err := data.NewWatcher(cfg.Scene.Path, log)
		if err != nil {
			return fmt.Errorf("scene watcher: %w", err)
		}
		defer w.Close()
		go w.Start(ctx)
		reload := system.NewReloadSystem(scene, cfg.Scene.Path, w.Changes(), log)
		if cfg.Server.SceneID != "" {
			reload.OverrideID(cfg.Server.SceneID)
		}
		runner.Register(reload)
		printOK("watching scene file")
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.BindAddress, log); err != nil {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		printOK(fmt.Sprintf("metrics on %s/metrics", cfg.Metrics.BindAddress))
	}

	// 8. Tick loop
	ticker := time.NewTicker(cfg.Perception.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("scene loop running (tick: %s)", cfg.Perception.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			runner.Tick(cfg.Perception.TickRate)
			metrics.TickDuration.Observe(time.Since(start).Seconds())
		case <-ctx.Done():
			log.Info("shutdown signal received")
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := scene.Close(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scene close", zap.Error(err))
			}
			log.Info("visiond stopped")
			return nil
		}
	}
}

func subscribeLogging(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.DarknessChanged) {
		log.Debug("darkness changed", zap.Float64("from", e.From), zap.Float64("to", e.To))
	})
	event.Subscribe(bus, func(e event.FogSaved) {
		if e.Err == nil {
			log.Info("fog saved", zap.Int("bytes", e.Bytes), zap.Duration("took", e.Duration))
		}
	})
	event.Subscribe(bus, func(e event.SceneReloaded) {
		log.Info("scene file applied", zap.String("path", e.Path))
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
