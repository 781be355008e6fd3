package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/persistence/indexdb"
	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/scene"
	"voxelpath.ai/internal/sim/agent"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory for request validation (empty to disable)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (calcs + path events + catalogs)")

		scenePath  = flag.String("scene", "", "scene file to load (default: generate one)")
		sceneID    = flag.String("scene_id", "scene_1", "scene id for generated scenes")
		seed       = flag.Int64("seed", 1337, "terrain seed for generated scenes")
		loadRadius = flag.Int("load_radius", 4, "chunks kept loaded around the agent in generated scenes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[pathd] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load catalogs: %v", err)
		}
		logger.Printf("blocks.json not found in %s; using built-in catalog", *configDir)
		cat = catalogs.Default()
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := settings.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = settings.Defaults()
	}

	var sc *scene.Scene
	if p := strings.TrimSpace(*scenePath); p != "" {
		sc, err = scene.Load(p, cat)
		if err != nil {
			logger.Fatalf("load scene: %v", err)
		}
		logger.Printf("loaded scene=%s tick=%d chunks=%d", sc.ID, sc.Tick, len(sc.Store.LoadedChunkKeys()))
	} else {
		sc = scene.Generated(cat, *sceneID, *seed, *loadRadius)
		logger.Printf("generated scene=%s seed=%d", sc.ID, sc.Seed)
	}

	mir, err := buildMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("mirror: %v", err)
	}
	defer mir.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cat, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	ag, err := agent.New(agent.Config{
		Scene:      sc,
		Catalog:    cat,
		Settings:   tune,
		LoadRadius: *loadRadius,
		Logger:     logger,
		OnSceneSaved: func(path string, s snapshot.SceneV1) {
			if idx != nil {
				idx.RecordScene(path, s)
			}
			mir.Enqueue(path)
		},
	})
	if err != nil {
		logger.Fatalf("agent: %v", err)
	}

	calcLog := persistlog.NewCalcLogger(*dataDir, logger)
	eventLog := persistlog.NewEventLogger(*dataDir, logger)
	defer calcLog.Close()
	defer eventLog.Close()
	calcLog.Writer().OnSegmentClosed(mir.Enqueue)
	eventLog.Writer().OnSegmentClosed(mir.Enqueue)
	ag.Behavior().AddCalcListener(calcLog)
	ag.Behavior().AddListener(eventLog)
	if idx != nil {
		ag.Behavior().AddCalcListener(idx)
		ag.Behavior().AddListener(idx)
	}

	validator, err := loadValidator(strings.TrimSpace(*schemaDir))
	if err != nil {
		logger.Printf("request validation disabled: %v", err)
	}

	mux := buildMux(ag, idx, muxOptions{
		SceneDir:    filepath.Join(*dataDir, "scenes"),
		EnableAdmin: envBool("VP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		Validator:   validator,
		Mirror:      mir,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ag.Run(ctx)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx2)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("stopped: %v", err)
	}
	logger.Printf("shutdown at tick %d", ag.CurrentTick())
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
