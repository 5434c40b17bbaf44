package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/game"
	"github.com/l1jgo/simcore/internal/instance"
	"github.com/l1jgo/simcore/internal/management"
	gonet "github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/l1jgo/simcore/internal/scripting"
	"github.com/l1jgo/simcore/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              simcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        副本模擬核心 · Go 遊戲伺服器       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg := config.Default()
	cfgPath := "config/server.toml"
	if p := os.Getenv("SIMCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Player store: PostgreSQL when configured, memory otherwise
	printSection("資料庫")

	skins := id.NewSequence(1)
	var players persist.PlayerStore
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
		players = persist.NewPlayerRepo(db)
	} else {
		players = persist.NewMemoryStore(skins)
		printOK("未設定資料庫，玩家資料保存在記憶體")
	}
	fmt.Println()

	// 4. Catalogs
	printSection("資料載入")

	maps, err := data.LoadMapTable(cfg.Data.MapList)
	if err != nil {
		return fmt.Errorf("load map table: %w", err)
	}
	printStat("地圖", maps.Count())

	monsters, err := data.LoadMonsterTable(cfg.Data.MonsterList)
	if err != nil {
		return fmt.Errorf("load monster table: %w", err)
	}
	printStat("怪物模板", monsters.Count())

	// 5. Lua combat formulas
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer engine.Close()
	if engine.HasAttackFormula() {
		printOK("Lua 傷害公式已載入")
	} else {
		printOK("使用預設傷害公式")
	}
	fmt.Println()

	// 6. Game and instances
	printSection("遊戲世界")

	gameCtx, stopGame := context.WithCancel(context.Background())
	defer stopGame()

	charset, err := packet.NewCharset(cfg.Network.Charset)
	if err != nil {
		return fmt.Errorf("network charset: %w", err)
	}

	g := game.New(gameCtx, game.Config{
		QueueSize:  cfg.Simulation.QueueSize,
		TickRate:   cfg.Simulation.TickRate,
		BcryptCost: cfg.Auth.BcryptCost,
		TokenTTL:   cfg.Auth.TokenTTL,
	}, maps, instance.Deps{
		Entities:       id.NewSequence(1),
		Skins:          skins,
		Monsters:       monsters,
		Damage:         engine.Damage(),
		Players:        players,
		AttackCooldown: cfg.Simulation.AttackCooldownTicks,
		AutosaveTicks:  cfg.Simulation.AutosaveTicks,
		MaxPlayers:     cfg.Simulation.MaxPlayersPerInstance,
		Log:            log,
	}, log)
	client := game.Start(gameCtx, g, players)
	printStat("副本", len(maps.All()))
	fmt.Println()

	// 7. Network and management
	printSection("網路")

	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InQueueSize:      cfg.Network.InQueueSize,
		OutQueueSize:     cfg.Network.OutQueueSize,
		ReadTimeout:      cfg.Network.ReadTimeout,
		WriteTimeout:     cfg.Network.WriteTimeout,
		PacketsPerSecond: cfg.Network.PacketsPerSecond,
	}, log)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	go netServer.AcceptLoop()
	printOK(fmt.Sprintf("遊戲連線埠 %s", netServer.Addr()))

	sessDeps := session.Deps{
		Game:           client,
		Charset:        charset,
		RequestTimeout: cfg.Management.RequestTimeout,
		Log:            log,
	}
	registry := session.NewRegistry(sessDeps)

	sessCtx, closeSessions := context.WithCancel(context.Background())
	defer closeSessions()
	var sessions sync.WaitGroup
	go func() {
		for sess := range netServer.NewSessions() {
			sessions.Add(1)
			go func() {
				defer sessions.Done()
				session.Serve(sessCtx, sess, registry, sessDeps)
			}()
		}
	}()

	mgmtCtx, stopMgmt := context.WithCancel(context.Background())
	defer stopMgmt()
	mgmt := management.NewServer(client, cfg.Management.RequestTimeout, log)
	mgmtErr := make(chan error, 1)
	go func() { mgmtErr <- mgmt.ListenAndServe(mgmtCtx, cfg.Management.BindAddress) }()
	printOK(fmt.Sprintf("管理介面 %s", cfg.Management.BindAddress))
	fmt.Println()
	printReady("伺服器啟動完成")

	// 8. Wait for a signal or a shutdown request
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		log.Info("收到關閉信號", zap.String("signal", sig.String()))
	case <-g.Quit():
		log.Info("管理介面要求關閉伺服器")
	case err := <-mgmtErr:
		if err != nil {
			log.Error("管理介面異常終止", zap.Error(err))
		}
	}

	// 9. Graceful shutdown: instances save their players as they stop
	netServer.Shutdown()
	stopMgmt()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := client.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("關閉副本失敗", zap.Error(err))
	}

	closeSessions()
	waitGroup(ctx, &sessions)
	client.Stop()
	<-client.Done()
	log.Info("伺服器已關閉")
	return nil
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
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
