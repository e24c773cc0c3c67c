// Command shapeshift submits generations and reads history through the API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shapeshift/internal/adapters/apiclient"
	"shapeshift/internal/core/poll"
	"shapeshift/internal/platform/config"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	gendom "shapeshift/internal/services/generation/domain"
)

const usage = `usage: shapeshift <command> [flags]

commands:
  image <file>      submit an image and wait for the model
  text <prompt>     submit a prompt and wait for the model
  wait <taskId>     wait for an existing task
  status <taskId>   print the current task state once
  credits           print the balance
  models            list generated models
  transactions      list credit transactions

environment: SHAPESHIFT_API_URL, SHAPESHIFT_TOKEN, SHAPESHIFT_TIMEOUT
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	logger.Init(logger.FromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := apiclient.New(apiclient.FromConfig(config.New()))
	if err := run(ctx, c, os.Args[1], os.Args[2:]); err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *apiclient.Client, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	every := fs.Duration("every", 10*time.Second, "delay between polls")
	polls := fs.Int("polls", 30, "max polls before giving up")
	noWait := fs.Bool("no-wait", false, "return after submitting")
	negative := fs.String("negative", "", "negative prompt (text only)")
	style := fs.String("style", "", "art style: realistic or sculpture (text only)")
	page := fs.Int("page", 1, "page number")
	_ = fs.Parse(args)

	policy := poll.Policy{Interval: *every, MaxPolls: *polls}

	switch cmd {
	case "image":
		if fs.NArg() != 1 {
			return perr.Validationf("image needs a file path")
		}
		path := fs.Arg(0)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sub, err := c.SubmitImage(ctx, filepath.Base(path), data)
		if err != nil {
			return err
		}
		return submitted(ctx, c, sub, policy, *noWait)
	case "text":
		if fs.NArg() != 1 {
			return perr.Validationf("text needs a quoted prompt")
		}
		sub, err := c.SubmitText(ctx, gendom.TextInput{Prompt: fs.Arg(0), NegativePrompt: *negative, ArtStyle: *style})
		if err != nil {
			return err
		}
		return submitted(ctx, c, sub, policy, *noWait)
	case "wait":
		if fs.NArg() != 1 {
			return perr.Validationf("wait needs a task id")
		}
		return wait(ctx, c, fs.Arg(0), policy)
	case "status":
		if fs.NArg() != 1 {
			return perr.Validationf("status needs a task id")
		}
		v, err := c.Status(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return printJSON(v)
	case "credits":
		a, err := c.Balance(ctx)
		if err != nil {
			return err
		}
		return printJSON(a)
	case "models":
		p, err := c.Models(ctx, *page)
		if err != nil {
			return err
		}
		return printJSON(p)
	case "transactions":
		p, err := c.Transactions(ctx, *page)
		if err != nil {
			return err
		}
		return printJSON(p)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func submitted(ctx context.Context, c *apiclient.Client, sub gendom.Submitted, p poll.Policy, noWait bool) error {
	fmt.Fprintf(os.Stderr, "task %s submitted, %d credits left\n", sub.TaskID, sub.RemainingCredits)
	if noWait {
		return printJSON(sub)
	}
	return wait(ctx, c, sub.TaskID, p)
}

func wait(ctx context.Context, c *apiclient.Client, taskID string, p poll.Policy) error {
	v, err := c.WaitForModel(ctx, taskID, p, func(attempt int, v gendom.View) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s %d%%\n", attempt, p.MaxPolls, v.Status, v.Progress)
	})
	if errors.Is(err, apiclient.ErrTimedOut) {
		return fmt.Errorf("task %s still processing after %s; run `shapeshift wait %s` to keep waiting",
			taskID, p.Budget(), taskID)
	}
	if err != nil {
		return err
	}
	if err := printJSON(v); err != nil {
		return err
	}
	if v.Error != "" {
		return errors.New(v.Error)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printErr(err error) {
	if e, ok := perr.As(err); ok {
		if f := e.Field(); f != "" {
			fmt.Fprintf(os.Stderr, "error: %s (%s: %s)\n", e.Message(), e.Code(), f)
			return
		}
		fmt.Fprintf(os.Stderr, "error: %s (%s)\n", e.Message(), e.Code())
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
