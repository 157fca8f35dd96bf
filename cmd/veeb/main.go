package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/client"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/server"
)

const dbname = "veeb.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "veeb",
		Short:   "Location/time-aware anonymous feed",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	feedCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(feedCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func loadKonf() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	err := konf.Load(file.Provider(cfg), yaml.Parser())
	return konf, err
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := loadKonf()
			if err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := loadKonf()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start the feed data service",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := loadKonf()
			if err != nil {
				return err
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			pub := server.NewNopPublisher()
			if url := konf.String("nats_url"); url != "" {
				pub, err = server.NewNATSPublisher(url)
				if err != nil {
					return errors.Wrap(err, "could not reach the change stream")
				}
				defer pub.Close()
			}

			engine := server.EchoEngine(server.IOC{
				Version:   version,
				Database:  db,
				Publisher: pub,
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			log.Printf("Server listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}

	//
	//
	feedCmd = &coral.Command{
		Use:   "feed",
		Short: "Start the interactive feed client",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := loadKonf()
			if err != nil {
				return err
			}

			return client.Feed(client.Config{
				DatabasePath: dbnameWithPath(konf.String("database_path")),
				ServerURL:    konf.String("server_url"),
				NATSURL:      konf.String("nats_url"),
				LogFile:      konf.String("log_file"),
			})
		},
	}
)
