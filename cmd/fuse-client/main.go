// FileDash FUSE Client
//
// Mounts a user's remote listing as a read-only filesystem:
// - JWT authentication (flag, env, or interactive prompt)
// - Lazy folder loading: contents fetched on first directory read
// - Extended attributes for entry status
// - Optional SSE watch and health check for offline recovery
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

	"github.com/filedash/filedash/pkg/client"
	"github.com/filedash/filedash/pkg/fusefs"
	"github.com/filedash/filedash/pkg/logger"
	"golang.org/x/term"
)

func main() {
	mountPoint := flag.String("mount", "", "Mount point for the virtual filesystem (required)")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	username := flag.String("username", "", "Username for login (prompted if omitted)")
	token := flag.String("token", "", "JWT authentication token")
	userID := flag.Int64("user", 0, "User id (required with -token)")
	watchSSE := flag.Bool("watch", false, "Subscribe to server events and log change notifications")
	healthCheck := flag.Duration("health-check", 30*time.Second, "Health check interval (0 to disable)")
	verbosity := flag.Int("v", 1, "Verbosity level: 0=quiet, 1=info, 2=debug")

	flag.Parse()

	switch *verbosity {
	case 0:
		logger.SetLevel(logger.LevelQuiet)
	case 1:
		logger.SetLevel(logger.LevelInfo)
	default:
		logger.SetLevel(logger.LevelDebug)
	}

	if *mountPoint == "" {
		fmt.Fprintf(os.Stderr, "Error: -mount is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if *token == "" {
		*token = os.Getenv("FILEDASH_TOKEN")
	}

	c := client.New(client.Config{
		BaseURL: strings.TrimSuffix(*serverURL, "/"),
		Timeout: 30 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uid := *userID
	if *token != "" {
		if uid == 0 {
			fmt.Fprintf(os.Stderr, "Error: -user is required with -token\n")
			os.Exit(1)
		}
		c.SetAuthToken(*token)
	} else {
		login, err := interactiveLogin(ctx, c, *username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		uid = login
	}

	logger.Info("FileDash FUSE Client (read-only)")
	logger.Info("  Server: %s", *serverURL)
	logger.Info("  Mount:  %s", *mountPoint)
	logger.Info("  User:   %d", uid)

	treeFS := fusefs.NewTreeFS(c, uid)

	logger.Info("Fetching root listing...")
	if err := treeFS.Init(ctx); err != nil {
		logger.Error("Failed to fetch listing: %v", err)
		os.Exit(1)
	}

	server, err := treeFS.Mount(*mountPoint)
	if err != nil {
		logger.Error("Mount failed: %v", err)
		os.Exit(1)
	}

	if *watchSSE {
		startSSEWatch(ctx, *serverURL, c.AuthToken())
	}
	if *healthCheck > 0 {
		startHealthCheck(ctx, c, *healthCheck)
	}

	logger.Info("Filesystem mounted at %s", *mountPoint)
	logger.Info("Press Ctrl+C to unmount and exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Unmounting...")
	cancel()
	server.Unmount()
	logger.Info("Done")
}

// interactiveLogin prompts for missing credentials and authenticates.
// Returns the logged-in user id; the client keeps the token.
func interactiveLogin(ctx context.Context, c *client.Client, username string) (int64, error) {
	if username == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return 0, fmt.Errorf("read password: %w", err)
	}

	resp, err := c.Login(ctx, username, string(passwordBytes))
	if err != nil {
		return 0, err
	}
	logger.Info("Logged in as %s", resp.Username)
	return resp.UserID, nil
}

func startSSEWatch(ctx context.Context, serverURL, token string) {
	sse := client.NewSSEClient(serverURL)
	sse.SetAuthToken(token)

	events := sse.Subscribe(ctx)
	go func() {
		for event := range events {
			logger.Info("Server event: %s entry=%d name=%s", event.Type, event.EntryID, event.Name)
		}
	}()
	logger.Info("SSE watch enabled")
}

func startHealthCheck(ctx context.Context, c *client.Client, period time.Duration) {
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				wasOnline := c.IsOnline()
				if err := c.Ping(ctx); err == nil && !wasOnline {
					logger.Info("Server is back online")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.Info("Health check enabled: every %v", period)
}
