package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/mycoharvest/officeroute/internal/attendance"
	attendancerepo "github.com/mycoharvest/officeroute/internal/attendance/repo"
	"github.com/mycoharvest/officeroute/internal/auth"
	authrepo "github.com/mycoharvest/officeroute/internal/auth/repo"
	"github.com/mycoharvest/officeroute/internal/insight"
	"github.com/mycoharvest/officeroute/internal/router"
	"github.com/mycoharvest/officeroute/internal/setting"
	settingrepo "github.com/mycoharvest/officeroute/internal/setting/repo"
	"github.com/mycoharvest/officeroute/internal/sync"
	"github.com/mycoharvest/officeroute/internal/user"
	userrepo "github.com/mycoharvest/officeroute/internal/user/repo"
	"github.com/mycoharvest/officeroute/pkg/database"
	"github.com/mycoharvest/officeroute/pkg/utilities"
)

func main() {
	// best-effort: use .env when present, real env otherwise
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting officeroute")

	sqlDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	db := sqlx.NewDb(sqlDB, "postgres")
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repositories and schema
	users := userrepo.NewUserRepo(db)
	records := attendancerepo.NewAttendanceRepo(db)
	sessions := authrepo.NewSessionRepo(db)
	settings := settingrepo.NewRepo(db)

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, ensure := range []func(context.Context) error{
		users.EnsureTable, records.EnsureTable, sessions.EnsureTable, settings.EnsureTable,
	} {
		if err := ensure(initCtx); err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}

	// services
	userSvc := user.NewService(db, users, nil)
	if err := userSvc.EnsureSeeded(initCtx); err != nil {
		sugar.Fatalf("seed users: %v", err)
	}

	issuer := os.Getenv("AUTH_ISSUER")
	if issuer == "" {
		issuer = "officeroute"
	}
	authSvc, err := auth.NewService(db, issuer)
	if err != nil {
		sugar.Fatalf("auth init: %v", err)
	}

	settingSvc := setting.NewService(settings)
	syncSvc := sync.NewService(users, records, settingSvc, sugar)
	trigger := sync.NewTrigger(syncSvc)
	attendanceSvc := attendance.NewService(records, users, attendance.SystemClock(), trigger, sugar)
	insightSvc := insight.NewService(sugar)

	handler := router.RegisterRoutes(router.Deps{
		Auth:       authSvc,
		AuthH:      auth.NewHandler(authSvc, userSvc, sugar),
		Users:      user.NewHandler(userSvc, sugar),
		Attendance: attendance.NewHandler(attendanceSvc, sugar),
		Sync:       sync.NewHandler(syncSvc, settingSvc, sugar),
		Settings:   setting.NewHandler(settingSvc, sugar),
		Insights:   insight.NewHandler(insightSvc, attendanceSvc, sugar),
	}, sugar)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", addr)

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
