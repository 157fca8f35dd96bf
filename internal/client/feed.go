// Package client is the terminal front of the feed engine: a readline REPL
// over the live, reconciled issue collection.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/engine"
	"github.com/veebhq/veeb/internal/geoutil"
	"github.com/veebhq/veeb/internal/ingress"
	"github.com/veebhq/veeb/internal/logger"
	"github.com/veebhq/veeb/internal/model"
	"github.com/veebhq/veeb/internal/rank"
	"github.com/veebhq/veeb/pkg/feedapi"
)

// A Config holds the feed client's configuration.
type Config struct {
	DatabasePath string
	ServerURL    string
	NATSURL      string
	LogFile      string
}

// Feed runs the interactive feed client until the user quits.
func Feed(cfg Config) error {
	logfile := cfg.LogFile
	if logfile == "" {
		logfile = "veeb.log"
	}
	log := logger.New(logfile)

	db, err := database.StormOpen(cfg.DatabasePath)
	if err != nil {
		return errors.Wrap(err, "could not open database")
	}
	defer db.Close()

	api, err := feedapi.NewDefaultClient(cfg.ServerURL)
	if err != nil {
		return errors.Wrap(err, "could not build API client")
	}

	e := engine.New(log, db, api, cfg.NATSURL)
	if err := e.Start(context.Background()); err != nil {
		return err
	}
	defer e.Stop()

	me := e.Me()
	log.Debug(logger.Dump(me))
	fmt.Printf("%s (%s)\n", me.Nickname, me.DeviceID)

	return (&repl{engine: e}).run()
}

type repl struct {
	engine *engine.Engine
	// last rendered view, for index-based commands
	feed []*model.Issue
}

func (r *repl) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "veeb> ",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("feed",
				readline.PcItem("all"),
				readline.PcItem("trending"),
				readline.PcItem("nearby"),
			),
			readline.PcItem("trends"),
			readline.PcItem("post"),
			readline.PcItem("react"),
			readline.PcItem("view"),
			readline.PcItem("delete"),
			readline.PcItem("stats"),
			readline.PcItem("keywords"),
			readline.PcItem("radius"),
			readline.PcItem("me"),
			readline.PcItem("export"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
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

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			r.help()
		case "feed":
			r.renderFeed(fields[1:])
		case "trends":
			r.renderTrends()
		case "post":
			r.post(rl)
		case "react":
			r.react(fields[1:])
		case "view":
			r.view(fields[1:])
		case "delete":
			r.delete(fields[1:])
		case "stats":
			r.stats(fields[1:])
		case "keywords":
			r.keywords(fields[1:])
		case "radius":
			r.radius(fields[1:])
		case "me", "export":
			r.export()
		case "status":
			fmt.Println("stream:", r.engine.StreamState())
		default:
			fmt.Println("unknown command, try help")
		}
	}
}

func (r *repl) help() {
	fmt.Print(`feed [all|trending|nearby] [category]   show the feed
trends                                  trending keywords
post                                    write a new issue
react N                                 toggle reaction on row N
view N                                  mark row N as seen
delete N                                remove your own row N
stats [N]                               author reputation (yours by default)
keywords kw1,kw2                        set alert keywords
radius 0..4                             set nearby radius (0.5/1/3/5/10 km)
me | export                             dump the device-local data
status                                  change-stream state
quit
`)
}

func (r *repl) renderFeed(args []string) {
	f := rank.Filter{Scope: rank.ScopeAll}
	if len(args) > 0 {
		f.Scope = rank.Scope(args[0])
	}
	if len(args) > 1 {
		f.Category = args[1]
	}

	r.feed = r.engine.Feed(f)
	if len(r.feed) == 0 {
		fmt.Println("empty feed")
		return
	}

	now := time.Now()
	for i, issue := range r.feed {
		var marks []string
		for _, b := range rank.CardBadges(issue, now, nil) {
			switch b.Type {
			case rank.CardHot:
				marks = append(marks, "🔥")
			case rank.CardFresh:
				marks = append(marks, "🕐")
			case rank.CardOnSite:
				marks = append(marks, "📍"+b.Distance)
			}
		}

		title := issue.Title
		if title == "" && issue.Image != "" {
			title = "(사진)"
		}
		fmt.Printf("%2d. [%s] %s %s — %s · 공감 %d · 조회 %d\n",
			i+1, issue.CategoryOrDefault(), title, strings.Join(marks, " "),
			geoutil.Nickname(issue.DeviceID), issue.ReactionCount, issue.Views)
	}
}

func (r *repl) renderTrends() {
	trends := r.engine.Trends()
	if len(trends) == 0 {
		fmt.Println("no trending keywords")
		return
	}
	for i, tk := range trends {
		fmt.Printf("%2d. #%s (%d)\n", i+1, tk.Word, tk.Count)
	}
}

func (r *repl) post(rl *readline.Instance) {
	defer rl.SetPrompt("veeb> ")

	rl.SetPrompt("제목: ")
	title, err := rl.Readline()
	if err != nil {
		return
	}
	rl.SetPrompt("카테고리 (기본 일상): ")
	category, err := rl.Readline()
	if err != nil {
		return
	}

	issue, err := r.engine.Post(ingress.Submission{
		Title:    strings.TrimSpace(title),
		Category: strings.TrimSpace(category),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("posted:", issue.ID)
}

func (r *repl) react(args []string) {
	issue := r.row(args)
	if issue == nil {
		return
	}
	reacted, err := r.engine.ToggleReaction(issue.ID)
	if err != nil {
		fmt.Println(err)
		return
	}
	if reacted {
		fmt.Println("💜")
	} else {
		fmt.Println("🤍")
	}
}

func (r *repl) view(args []string) {
	issue := r.row(args)
	if issue == nil {
		return
	}
	r.engine.Visible(issue.ID)
}

func (r *repl) delete(args []string) {
	issue := r.row(args)
	if issue == nil {
		return
	}
	if err := r.engine.Delete(issue.ID); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("삭제됨:", issue.Title)
}

func (r *repl) stats(args []string) {
	deviceID := r.engine.Me().DeviceID
	if len(args) > 0 {
		if issue := r.row(args); issue != nil {
			deviceID = issue.DeviceID
		} else {
			return
		}
	}

	s := r.engine.StatsFor(deviceID)
	fmt.Printf("%s — %s (영향력 %d)\n", s.Nickname, s.Level.Label, s.Influence)
	fmt.Printf("글 %d · 받은 공감 %d\n", s.Stats.Posts, s.Stats.Reactions)
	for _, b := range s.Badges {
		fmt.Printf("%s %s\n", b.Emoji, b.Label)
	}
	if s.NextLevel != nil {
		fmt.Printf("다음 레벨 %s까지 %d\n", s.NextLevel.Label, s.NextLevelGap)
	}
}

func (r *repl) keywords(args []string) {
	if len(args) == 0 {
		fmt.Println(strings.Join(r.engine.Profile().AlertKeywords, ", "))
		return
	}

	var keywords []string
	for _, kw := range strings.Split(strings.Join(args, " "), ",") {
		kw = strings.TrimPrefix(strings.TrimSpace(kw), "#")
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if err := r.engine.SetAlertKeywords(keywords); err != nil {
		fmt.Println(err)
	}
}

func (r *repl) radius(args []string) {
	if len(args) == 0 {
		fmt.Printf("%.1f km\n", rank.RadiusSteps[r.engine.Profile().RadiusIndex])
		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("radius wants an index between 0 and", len(rank.RadiusSteps)-1)
		return
	}
	if err := r.engine.SetRadiusIndex(index); err != nil {
		fmt.Println(err)
	}
}

func (r *repl) export() {
	raw, err := json.MarshalIndent(r.engine.Me(), "", "  ")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(raw))
}

// row resolves a 1-based feed index argument.
func (r *repl) row(args []string) *model.Issue {
	if len(args) == 0 {
		fmt.Println("which row? run feed first, then use its number")
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(r.feed) {
		fmt.Println("no such row")
		return nil
	}
	return r.feed[n-1]
}
