// Package main is the BuddyAI terminal chat client. It drives the
// conversation store and exchange client against a running gateway.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/buddy-ai/buddyai/internal/config"
	"github.com/buddy-ai/buddyai/internal/conversation"
	"github.com/buddy-ai/buddyai/internal/exchange"
	"github.com/buddy-ai/buddyai/internal/model"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

const helpText = `Commands:
  /new              start a new conversation
  /list             list conversations
  /switch <n>       switch to conversation n
  /rename <title>   rename the current conversation
  /delete           delete the current conversation
  /help             show this help
  /quit             exit
Anything else is sent to BuddyAI.`

func main() {
	cfg := config.LoadClient()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	store, err := conversation.Open(filepath.Join(cfg.DataDir, "conversations.db"), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open conversations: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	client := exchange.New(cfg.GatewayURL, store,
		exchange.WithMinReplyDelay(cfg.MinReplyDelay),
		exchange.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		exchange.WithLogger(log),
	)

	// Graceful shutdown on Ctrl-C / SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	fmt.Println("BuddyAI (type /help for commands, Ctrl-C to quit)")
	printConversation(store.Current())

	scanner := bufio.NewScanner(os.Stdin)
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case line, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			if quit := runCommand(store, line); quit {
				break outer
			}
			continue
		}

		reply, err := client.Send(ctx, line)
		switch {
		case errors.Is(err, exchange.ErrEmptyMessage):
			continue
		case errors.Is(err, exchange.ErrBusy):
			fmt.Println("still waiting on the previous reply")
			continue
		case err != nil:
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			continue
		}
		printMessage(*reply)
	}
}

func runCommand(store *conversation.Store, line string) (quit bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/new":
		conv := store.Create()
		printConversation(conv)
	case "/list":
		current := store.Current()
		for i, c := range store.List() {
			marker := " "
			if current != nil && c.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s %2d. %s (%d messages)\n", marker, i+1, c.Title, len(c.Messages))
		}
	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <n>")
			return false
		}
		n, err := strconv.Atoi(args[0])
		list := store.List()
		if err != nil || n < 1 || n > len(list) {
			fmt.Println("no such conversation")
			return false
		}
		store.SwitchTo(list[n-1].ID)
		printConversation(store.Current())
	case "/rename":
		if current := store.Current(); current != nil {
			store.Rename(current.ID, strings.Join(args, " "))
		}
	case "/delete":
		if current := store.Current(); current != nil {
			store.Delete(current.ID)
		}
		printConversation(store.Current())
	case "/help":
		fmt.Println(helpText)
	case "/quit", "/exit":
		return true
	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return false
}

func printConversation(conv *model.Conversation) {
	if conv == nil {
		return
	}
	fmt.Printf("--- %s ---\n", conv.Title)
	for _, msg := range conv.Messages {
		printMessage(msg)
	}
}

func printMessage(msg model.Message) {
	label := "\u001b[93mBuddy\u001b[0m"
	if msg.Sender == model.SenderUser {
		label = "\u001b[94mYou\u001b[0m"
	}
	fmt.Printf("%s: %s\n", label, msg.Text)
}
