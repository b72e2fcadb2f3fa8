// Package main provides an interactive shell for browsing a FileDash
// listing, driving the same incremental-load session the other clients
// use: folder contents are fetched the first time a folder is opened.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/filedash/filedash/pkg/client"
	"github.com/filedash/filedash/pkg/explorer"
	"github.com/filedash/filedash/pkg/logger"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	username := flag.String("username", "", "Username for login")
	password := flag.String("password", "", "Password for login")
	token := flag.String("token", "", "Bearer token (skips login)")
	userID := flag.Int64("user", 0, "User id (required with -token)")
	logLevel := flag.String("log-level", "error", "Log level (debug, info, error)")

	flag.Parse()

	logger.SetLevel(logger.ParseLevel(*logLevel))

	c := client.New(client.Config{
		BaseURL: strings.TrimSuffix(*serverURL, "/"),
		Timeout: 30 * time.Second,
	})

	ctx := context.Background()

	uid := *userID
	if *token != "" {
		if uid == 0 {
			fmt.Fprintln(os.Stderr, "-user is required with -token")
			os.Exit(1)
		}
		c.SetAuthToken(*token)
	} else {
		if *username == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "provide -username and -password, or -token with -user")
			os.Exit(1)
		}
		login, err := c.Login(ctx, *username, *password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
		uid = login.UserID
		fmt.Printf("Logged in as %s (user %d)\n", login.Username, login.UserID)
	}

	session := explorer.NewSession(c, uid)
	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading root listing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d entries. Type 'help' for commands.\n", session.Loader().StoreLen())
	printPath(session)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "ls", "list":
			cmdList(session)
		case "cd":
			cmdNavigate(ctx, session, args)
		case "up", "..":
			session.NavigateUp(ctx)
			printPath(session)
		case "pwd", "path":
			printPath(session)
		case "sel", "select":
			cmdSelect(session, args)
		case "cur", "cursor":
			cmdCursor(session, args)
		case "open":
			session.Activate(ctx)
			printPath(session)
		case "all":
			session.SelectAll()
			cmdSelected(session)
		case "clear", "esc":
			session.ClearSelection()
			cmdSelected(session)
		case "selected":
			cmdSelected(session)
		case "req", "request":
			cmdRequest(ctx, session, args)
		case "help":
			printUsage()
		case "quit", "exit", "q":
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func printUsage() {
	fmt.Println(`Commands:
  ls                      List the active folder
  cd <id>                 Open a folder (loads contents on first visit)
  up                      Go to the parent folder
  pwd                     Show the active path
  select <id> [mods]      Click an entry; mods: shift, ctrl, shift+ctrl
  cursor <delta> [mods]   Move the cursor by delta entries, with modifiers
  open                    Open the entry at the cursor
  all                     Select every entry in the active folder
  clear                   Clear the selection
  selected                Show selected entries
  request <id>            Request a file download
  quit                    Exit`)
}

func printPath(s *explorer.Session) {
	parts := make([]string, 0, 4)
	for _, e := range s.Path() {
		parts = append(parts, e.Name)
	}
	fmt.Printf("/%s\n", strings.Join(parts, "/"))
}

func cmdList(s *explorer.Session) {
	entries := s.Contents()
	if len(entries) == 0 {
		fmt.Println("(empty)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  \tID\tNAME\tSIZE")
	for _, e := range entries {
		marker := " "
		if s.IsSelected(e.ID) {
			marker = "*"
		}
		name := e.Name
		size := formatSize(e.Size)
		if e.IsFolder {
			name += "/"
			size = "-"
		}
		fmt.Fprintf(w, "%s \t%d\t%s\t%s\n", marker, e.ID, name, size)
	}
	w.Flush()
}

func cmdNavigate(ctx context.Context, s *explorer.Session, args []string) {
	id, ok := parseID(args)
	if !ok {
		fmt.Fprintln(os.Stderr, "Usage: cd <id>")
		return
	}
	s.NavigateTo(ctx, id)
	printPath(s)
}

func cmdSelect(s *explorer.Session, args []string) {
	id, ok := parseID(args)
	if !ok {
		fmt.Fprintln(os.Stderr, "Usage: select <id> [shift|ctrl|shift+ctrl]")
		return
	}
	rangeMod, toggleMod := parseMods(args[1:])
	s.Select(id, rangeMod, toggleMod)
	cmdSelected(s)
}

func cmdCursor(s *explorer.Session, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cursor <delta> [shift|ctrl]")
		return
	}
	delta, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad delta: %s\n", args[0])
		return
	}
	rangeMod, toggleMod := parseMods(args[1:])
	s.MoveCursor(delta, rangeMod, toggleMod)
	cmdSelected(s)
}

func cmdSelected(s *explorer.Session) {
	ids := s.Selected()
	if len(ids) == 0 {
		fmt.Println("Nothing selected")
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	fmt.Printf("Selected: %s\n", strings.Join(parts, ", "))
}

func cmdRequest(ctx context.Context, s *explorer.Session, args []string) {
	id, ok := parseID(args)
	if !ok {
		fmt.Fprintln(os.Stderr, "Usage: request <id>")
		return
	}
	if err := s.RequestDownload(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return
	}
	fmt.Printf("Download requested for %d\n", id)
}

func parseID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseMods(args []string) (rangeMod, toggleMod bool) {
	for _, arg := range args {
		for _, mod := range strings.Split(arg, "+") {
			switch mod {
			case "shift":
				rangeMod = true
			case "ctrl":
				toggleMod = true
			}
		}
	}
	return rangeMod, toggleMod
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
