package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quillworks/quill/engine"
	"github.com/quillworks/quill/fakedata"
	"github.com/quillworks/quill/relevance"

	"github.com/araddon/dateparse"
	cli "github.com/urfave/cli/v2"
)

// postInput is one collector-exported post. age_hours wins when both age
// fields are present; posted_at timestamps are parsed leniently since
// collectors emit whatever format the source page used.
type postInput struct {
	Text       string   `json:"text"`
	AuthorName string   `json:"author_name,omitempty"`
	AgeHours   *float64 `json:"age_hours,omitempty"`
	PostedAt   string   `json:"posted_at,omitempty"`
	Window     string   `json:"window,omitempty"`
}

func (p *postInput) item(now time.Time) (relevance.Item, error) {
	w, err := relevance.ParseWindow(p.Window)
	if err != nil {
		return relevance.Item{}, err
	}
	var age float64
	switch {
	case p.AgeHours != nil:
		age = *p.AgeHours
	case p.PostedAt != "":
		ts, err := dateparse.ParseAny(p.PostedAt)
		if err != nil {
			return relevance.Item{}, fmt.Errorf("parsing posted_at: %w", err)
		}
		age = now.Sub(ts).Hours()
	}
	return relevance.Item{
		Text:       p.Text,
		AuthorName: p.AuthorName,
		AgeHours:   age,
		Window:     w,
	}, nil
}

var cmdEval = &cli.Command{
	Name:      "eval",
	Usage:     "score collector-exported posts from a file or stdin",
	ArgsUsage: "[posts.json]",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "generate",
			Usage: "generate this many synthetic posts instead of reading input",
		},
		&cli.Float64Flag{
			Name:  "frac-hiring",
			Usage: "portion of generated posts with real hiring intent",
			Value: 0.3,
		},
		&cli.BoolFlag{
			Name:  "act",
			Usage: "run the full pipeline, including comment generation (consumes quota)",
		},
	}, engineFlags...),
	Action: runEval,
}

// score-only output row; --act prints full engine verdicts instead
type evalResult struct {
	Text       string           `json:"text"`
	AuthorName string           `json:"author_name,omitempty"`
	Score      relevance.Result `json:"score"`
}

func runEval(cctx *cli.Context) error {
	ctx := context.Background()
	logger := configLogger(cctx, os.Stderr)

	posts, err := loadPosts(cctx)
	if err != nil {
		return err
	}
	now := time.Now()

	if !cctx.Bool("act") {
		scorer := relevance.NewScorer(cctx.StringSlice("interests"))
		minScore := cctx.Float64("min-score")
		acted := 0
		for i := range posts {
			item, err := posts[i].item(now)
			if err != nil {
				return fmt.Errorf("post %d: %w", i, err)
			}
			res := relevance.Decide(item, scorer.Score(item), minScore)
			if res.Act {
				acted++
			}
			line, err := json.Marshal(evalResult{
				Text:       item.Text,
				AuthorName: item.AuthorName,
				Score:      res,
			})
			if err != nil {
				return err
			}
			fmt.Println(string(line))
		}
		logger.Info("eval complete", "posts", len(posts), "would_act", acted)
		return nil
	}

	eng, err := engine.New(configFromFlags(cctx), logger)
	if err != nil {
		return err
	}
	if err := eng.Startup(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	acted, failed := 0, 0
	for i := range posts {
		item, err := posts[i].item(now)
		if err != nil {
			return fmt.Errorf("post %d: %w", i, err)
		}
		verdict, err := eng.ProcessItem(ctx, item)
		if err != nil {
			if errors.Is(err, engine.ErrNotReady) {
				return err
			}
			logger.Warn("item not decided", "post", i, "err", err)
			failed++
			continue
		}
		if verdict.Acted {
			acted++
		}
		line, err := json.Marshal(verdict)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	logger.Info("eval complete", "posts", len(posts), "acted", acted, "failed", failed)
	return nil
}

func loadPosts(cctx *cli.Context) ([]postInput, error) {
	if n := cctx.Int("generate"); n > 0 {
		gen := fakedata.GenPosts(n, cctx.Float64("frac-hiring"), cctx.StringSlice("interests"))
		posts := make([]postInput, len(gen))
		for i, p := range gen {
			age := p.AgeHours
			posts[i] = postInput{
				Text:       p.Text,
				AuthorName: p.AuthorName,
				AgeHours:   &age,
				Window:     p.Window,
			}
		}
		return posts, nil
	}

	path := cctx.Args().First()
	var rdr io.Reader
	switch path {
	case "", "-":
		rdr = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rdr = f
	}
	var posts []postInput
	if err := json.NewDecoder(rdr).Decode(&posts); err != nil {
		return nil, fmt.Errorf("parsing posts: %w", err)
	}
	return posts, nil
}
