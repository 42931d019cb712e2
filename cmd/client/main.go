// Package main provides a CLI for uploading files to a PearDrive server.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/uploader"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	username := flag.String("user", "", "Username")
	password := flag.String("pass", "", "Password (or PEARDRIVE_PASSWORD)")
	token := flag.String("token", "", "Bearer token (skips login)")
	folderID := flag.String("folder", "", "Destination folder id")
	timeout := flag.Duration("timeout", 10*time.Minute, "Per-upload timeout")

	flag.Parse()

	if err := logging.Init(logging.Config{Level: "warn", Format: "console"}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	paths := flag.Args()
	if len(paths) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := uploader.NewClient(uploader.Config{
		BaseURL: *serverURL,
		Timeout: *timeout,
	})

	if *token != "" {
		client.SetAuthToken(*token)
	} else {
		pass := *password
		if pass == "" {
			pass = os.Getenv("PEARDRIVE_PASSWORD")
		}
		if *username == "" || pass == "" {
			fmt.Fprintln(os.Stderr, "Provide -token, or -user with -pass/PEARDRIVE_PASSWORD")
			os.Exit(1)
		}
		host, _ := os.Hostname()
		login, err := client.Login(ctx, *username, pass, "peardrive-cli@"+host)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Logged in as %s\n", login.User.Username)
	}

	mgr := uploader.NewManager(client, nil)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", path, err)
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			fmt.Fprintf(os.Stderr, "Skipping %s: not a regular file\n", path)
			f.Close()
			continue
		}

		name := filepath.Base(path)
		mgr.Upload(ctx, name, mimeType(name), info.Size(), *folderID, f)
		// File handles stay open until the manager drains them; closing
		// happens via process exit after Wait.
	}

	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			printProgress(mgr.Tasks())
		case <-done:
			printProgress(mgr.Tasks())
			fmt.Println()
			reportResults(mgr.Tasks())
			return
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			os.Exit(1)
		}
	}
}

func printProgress(tasks []uploader.Task) {
	parts := make([]string, 0, len(tasks))
	for _, t := range tasks {
		switch t.Status {
		case uploader.StatusCompleted:
			parts = append(parts, fmt.Sprintf("%s: done", t.Name))
		case uploader.StatusFailed:
			parts = append(parts, fmt.Sprintf("%s: FAILED", t.Name))
		default:
			parts = append(parts, fmt.Sprintf("%s: %d%%", t.Name, t.Progress))
		}
	}
	fmt.Printf("\r%s", strings.Join(parts, "  "))
}

func reportResults(tasks []uploader.Task) {
	failed := 0
	for _, t := range tasks {
		if t.Status == uploader.StatusFailed {
			failed++
			fmt.Fprintf(os.Stderr, "%s failed: %s\n", t.Name, t.Error)
		}
	}
	fmt.Printf("%d uploaded, %d failed\n", len(tasks)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func mimeType(name string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func printUsage() {
	fmt.Println(`PearDrive Upload CLI

Usage: peardrive-cli [flags] <file> [file...]

Flags:
  -server <url>    Server URL (default: http://localhost:8080)
  -user <name>     Username
  -pass <pass>     Password (or set PEARDRIVE_PASSWORD)
  -token <jwt>     Bearer token, skips login
  -folder <id>     Destination folder id
  -timeout <dur>   Per-upload timeout (default: 10m)

Examples:
  peardrive-cli -user admin -pass admin photo.jpg notes.txt
  peardrive-cli -token $TOKEN -folder 2f1c... big.iso`)
}
