package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"teller/internal/adapter/mcpserver"
	"teller/internal/domain"
	"teller/internal/infra/config"
)

const version = "0.3.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "chat":
		err = runChat(args)
	case "mcp":
		err = runMCP(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'teller --help' for usage.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Print(`teller - multi-agent banking assistant

Usage:
  teller [serve] [flags]   Run the agent runtime and HTTP gateway
  teller chat [flags]      Chat with the assistant on the terminal
  teller mcp [flags]       Serve the tool catalog over MCP on stdio
  teller help              Show this help

Flags:
  -config path             Config file (YAML); defaults apply when absent
  -tenant, -user, -thread  Caller identity for chat
`)
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	path := fs.String("config", "teller.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(*path)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			rt.Logger.Warn("shutdown", "error", err)
		}
	}()

	rt.Logger.Info("teller starting", "version", version)
	if rt.Gateway == nil {
		rt.Logger.Info("gateway disabled, waiting for signal")
		<-ctx.Done()
		return nil
	}
	return rt.Gateway.Start(ctx)
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	tenant := fs.String("tenant", "tenant-a", "tenant id")
	user := fs.String("user", "user-1", "user id")
	thread := fs.String("thread", "", "thread id; a new one is created when empty")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	// Chat never binds the network gateway.
	cfg.Gateway.Enabled = false

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	if cfg.Storage.Seed {
		if err := rt.Store.Seed(ctx, *tenant, *user); err != nil {
			return err
		}
	}

	threadID := *thread
	if threadID == "" {
		threadID = ulid.Make().String()
	}
	fmt.Printf("thread %s (ctrl-d to quit)\n", threadID)

	id := domain.Identity{TenantID: *tenant, UserID: *user, ThreadID: threadID, Roles: []domain.AuthRole{domain.AuthRoleCustomer}}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := runTurn(ctx, rt, id, text); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// runTurn routes one user message and persists the updated thread.
func runTurn(ctx context.Context, rt *Runtime, id domain.Identity, text string) error {
	ctx = domain.ContextWithIdentity(ctx, id)

	th, err := rt.Store.Thread(ctx, id.TenantID, id.UserID, id.ThreadID)
	if err != nil {
		th = &domain.Thread{
			ID:          id.ThreadID,
			TenantID:    id.TenantID,
			UserID:      id.UserID,
			ActiveAgent: domain.AgentUnknown,
		}
	}

	inbound := domain.Message{Role: domain.RoleUser, Content: text, Timestamp: time.Now().UTC()}
	decision, err := rt.Engine.Route(ctx, th, inbound)
	if err != nil {
		return err
	}

	msgs := append([]domain.Message{inbound}, decision.Messages...)
	if err := rt.Store.AppendMessages(ctx, id.TenantID, id.UserID, id.ThreadID, msgs); err != nil {
		return err
	}

	for _, m := range decision.Messages {
		if m.Role == domain.RoleAssistant && m.Content != "" {
			fmt.Println(m.Content)
		}
	}
	if decision.Target == domain.AgentHuman {
		return nil
	}
	fmt.Printf("(now talking to %s)\n", decision.Target)
	return nil
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	tenant := fs.String("tenant", "tenant-a", "tenant id")
	user := fs.String("user", "user-1", "user id")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	// MCP owns stdout; force logs elsewhere and keep the gateway off.
	cfg.Gateway.Enabled = false
	if cfg.Logger.Output == "" || cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	ctx := context.Background()
	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	id := domain.Identity{TenantID: *tenant, UserID: *user, Roles: []domain.AuthRole{domain.AuthRoleAdmin}}
	srv := mcpserver.New(rt.Catalog.All(), id, version, rt.Logger)
	return srv.ServeStdio()
}
