package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/internal/bot"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	name := flag.String("name", "bot", "player identity")
	matchID := flag.String("match", "", "match to join (created if empty)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	client := bot.NewClient(*name, *url)

	id := *matchID
	if id == "" {
		created, err := client.CreateMatch(*name + "'s match")
		if err != nil {
			log.Fatal().Err(err).Msg("Create match failed")
		}
		id = created
		log.Info().Str("matchId", id).Msg("Created match, waiting for an opponent")
	} else {
		if err := client.JoinMatch(id); err != nil {
			log.Fatal().Err(err).Msg("Join match failed")
		}
	}

	// The match starts once both seats are taken.
	for {
		m, err := client.GetMatch(id)
		if err != nil {
			log.Fatal().Err(err).Msg("Get match failed")
		}
		if m.Status == "active" {
			break
		}
		time.Sleep(time.Second)
	}

	side, err := client.Seat(id)
	if err != nil {
		log.Fatal().Err(err).Msg("No seat in match")
	}
	log.Info().Str("matchId", id).Str("side", side.String()).Msg("Match started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	player := bot.NewPlayer(client, id, side, *seed)
	if err := player.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Player stopped with error")
	}
	log.Info().Msg("Match finished")
}
