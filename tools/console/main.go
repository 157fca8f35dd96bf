package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/asdine/storm/v3"
	"github.com/chzyer/readline"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/pkg/stormsql"
)

// go run tools/console/main.go veeb.db " SELECT count(*) FROM issues WHERE DeviceID = 'f2a98ab0-2c40-42b4-be08-da3b771be935' AND CreatedAt > '2026-08-01 00:00:00';  "

func main() {
	c := &coral.Command{
		Use:   "console",
		Short: "SQL console for a veeb feed database",
		Args:  coral.RangeArgs(1, 2),
		RunE: func(_ *coral.Command, args []string) error {
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], database.StormCodec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			if len(args) == 2 {
				return execute(db, args[1])
			}
			return repl(db)
		},
	}

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func repl(db *storm.DB) error {
	rl, err := readline.New("veeb> ")
	if err != nil {
		return errors.Wrap(err, "could not open prompt")
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "could not read line")
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := execute(db, line); err != nil {
			fmt.Println(err)
		}
	}
}

func execute(db *storm.DB, sql string) error {
	sc, err := stormsql.ParseSelect(sql)
	if err != nil {
		return err
	}

	query := db.Select(sc.Matcher)
	if sc.Skip > 0 {
		query.Skip(sc.Skip)
	}
	if sc.Limit > 0 {
		query.Limit(sc.Limit)
	}
	if len(sc.OrderBy) > 0 {
		query.OrderBy(sc.OrderBy...)
		if sc.OrderByReversed {
			query.Reverse()
		}
	}

	if sc.Count {
		return count(sc, query)
	}
	return list(sc, query)
}

func count(sc *stormsql.SelectClause, query storm.Query) error {
	var records any
	switch sc.Tablename {
	case "issues":
		records = &model.Issue{}
	case "profiles":
		records = &model.Profile{}
	default:
		return errors.Errorf("unknown tablename: %s", sc.Tablename)
	}

	n, err := query.Count(records)
	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	fmt.Println("Count:", n)
	return nil
}

func list(sc *stormsql.SelectClause, query storm.Query) error {
	var records any
	switch sc.Tablename {
	case "issues":
		records = &[]*model.Issue{}
	case "profiles":
		records = &[]*model.Profile{}
	default:
		return errors.Errorf("unknown tablename: %s", sc.Tablename)
	}

	err := query.Find(records)
	if err == storm.ErrNotFound {
		fmt.Println("[]")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	jsondump(records)
	return nil
}

func jsondump(v any) {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(d))
}
