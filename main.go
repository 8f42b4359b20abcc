package main

import (
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/swdunlop/zugzug-go"
)

func init() {
	noColor := !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: `2006-01-02 15:04:05`, NoColor: noColor}).
		With().Timestamp().Logger()
	zlog.Logger = log
	zerolog.DefaultContextLogger = &zlog.Logger
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

var tasks = zugzug.Tasks{}

func main() {
	_ = godotenv.Load() // a missing .env is fine; it must load before zugzug reads the environment
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	zugzug.Main(zugzug.Default(`build`), tasks)
}
