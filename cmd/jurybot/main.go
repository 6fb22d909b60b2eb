package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/config"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db/sqlite"
	"github.com/Wenbobobo/AntiSpamBOT/internal/handlers"
	"github.com/Wenbobobo/AntiSpamBOT/internal/handlers/admin"
	"github.com/Wenbobobo/AntiSpamBOT/internal/infra"
	"github.com/Wenbobobo/AntiSpamBOT/internal/jury"
	"github.com/Wenbobobo/AntiSpamBOT/internal/lifecycle"
	"github.com/Wenbobobo/AntiSpamBOT/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.JbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	infra.GoRecoverable(-1, "process_updates", func() {
		defer cancel()

		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "bot.db")
		if err != nil {
			log.WithError(err).Fatalln("cant open database")
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				log.WithError(err).Errorln("cant close database")
			}
		}()

		service := bot.NewService(botAPI, dbClient)
		cases := jury.NewCaseService(dbClient, botAPI, cfg.DefaultLanguage)

		bot.RegisterUpdateHandler("admin", admin.New(service, cfg.DefaultLanguage))
		bot.RegisterUpdateHandler("jury", handlers.NewJury(service, cases, cfg.DefaultLanguage))

		runtime := lifecycle.NewRuntime(
			cases,
			observability.NewServer(cfg.MetricsListen),
		)
		if err := runtime.Start(ctx); err != nil {
			log.WithError(err).Fatalln("cant start components")
		}
		defer func() {
			if err := runtime.Stop(context.Background()); err != nil {
				log.WithError(err).Errorln("cant stop components")
			}
		}()

		// overdue cases must be settled before new updates can race them
		if err := cases.ExpireOverdueCases(ctx); err != nil {
			log.WithError(err).Fatalln("cant sweep overdue cases")
		}

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service)

		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)
		modified := infra.MonitorExecutable(ctx)

		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Fatalln("bot api get updates error")
			case update := <-updateChan:
				if err := updateProcessor.Process(ctx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			case <-modified:
				log.Errorln("executable file was modified, exiting")
				return
			case <-ctx.Done():
				log.Infoln("shutting down")
				return
			}
		}
	})

	<-ctx.Done()
}
