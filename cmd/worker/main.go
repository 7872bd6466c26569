package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"classtrack/internal/attendance"
	"classtrack/internal/clock"
	"classtrack/internal/config"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// The worker owns everything that happens off the request path: it
// evaluates achievements for students whose history just changed, and it
// runs the administrative archival sweep that retires old sessions.
func main() {
	cfg := config.Load()
	log := cfg.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:evaluations")
	}

	clk := clock.System{}
	repo := attendance.NewRepository(db.Client)
	stats := attendance.NewStats(repo, nil, cfg.DefaulterThreshold)
	evaluator := attendance.NewEvaluator(repo, stats, clk, log)
	sessions := attendance.NewSessionManager(repo, clk)

	// Archival is the out-of-band administrative action the request path
	// never performs. Sessions past the retention age leave every live
	// query once this flips is_archived.
	c := cron.New(cron.WithLocation(time.Local))
	if _, err := c.AddFunc(cfg.ArchiveCronSpec, func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer jobCancel()
		n, err := sessions.ArchiveOlderThan(jobCtx, cfg.ArchiveAfter)
		if err != nil {
			log.WithError(err).Error("session archival failed")
			return
		}
		metrics.SessionsArchived.Add(float64(n))
		log.WithField("archived", n).Info("session archival sweep done")
	}); err != nil {
		log.WithError(err).Fatal("bad archive cron spec")
	}
	c.Start()
	defer c.Stop()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}

	log.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != queue.TypeEvaluate {
			continue
		}
		studentID := string(msg.Body)
		results, err := evaluator.Evaluate(ctx, studentID)
		if err != nil {
			log.WithError(err).WithField("student", studentID).Error("achievement evaluation failed")
			continue
		}
		for _, res := range results {
			if res.JustUnlocked {
				log.WithFields(logrus.Fields{
					"student":     studentID,
					"achievement": res.Achievement.Title,
				}).Info("achievement unlocked")
			}
		}
	}

	log.Info("worker stopped")
}
