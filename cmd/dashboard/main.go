// Command dashboard is a terminal client for the stock dashboard API. It owns
// the session manager for the process: the session is restored before the
// first prompt and the auth-event subscription is released on exit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/config"
	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/identity"
	"stock-dashboard/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	store, err := session.NewFileTokenStore(cfg.Client.TokenDir)
	if err != nil {
		logger.Fatalf("open token store: %v", err)
	}

	var provider any
	if cfg.Identity.URL != "" {
		idClient := identity.New(identity.Config{
			URL:    cfg.Identity.URL,
			APIKey: cfg.Identity.APIKey,
		}, logger)
		defer idClient.Close()
		provider = idClient
	}

	backend := session.NewClient(cfg.Client.BaseURL, 15*time.Second)
	manager := session.NewManager(provider, backend, store, logger)
	defer manager.Close()

	ctx := context.Background()
	manager.Restore(ctx)

	snap := manager.Snapshot()
	if snap.User != nil {
		fmt.Printf("signed in as %s\n", displayName(snap.User))
	} else {
		fmt.Println("not signed in; use 'login' or 'register'")
	}

	api := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Client.BaseURL, "/")).
		SetTimeout(15 * time.Second)

	repl(ctx, manager, api)
}

func repl(ctx context.Context, manager *session.Manager, api *resty.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: login | register | whoami | quote <ticker> | logout | quit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "login":
			identifier := prompt(scanner, "email")
			secret := prompt(scanner, "password")
			if err := manager.Login(ctx, identifier, secret); err != nil {
				fmt.Printf("login failed: %v\n", err)
				continue
			}
			fmt.Printf("signed in as %s\n", displayName(manager.Snapshot().User))
		case "register":
			identifier := prompt(scanner, "email")
			secret := prompt(scanner, "password")
			name := prompt(scanner, "display name (optional)")
			if err := manager.Register(ctx, identifier, secret, name); err != nil {
				fmt.Printf("registration failed: %v\n", err)
				continue
			}
			fmt.Printf("signed in as %s\n", displayName(manager.Snapshot().User))
		case "whoami":
			snap := manager.Snapshot()
			if snap.User == nil {
				fmt.Println("not signed in")
				continue
			}
			fmt.Printf("%s <%s>\n", displayName(snap.User), snap.User.Email)
		case "quote":
			if len(fields) < 2 {
				fmt.Println("usage: quote <ticker>")
				continue
			}
			printQuote(ctx, api, fields[1])
		case "logout":
			manager.Logout(ctx)
			fmt.Println("signed out")
		case "quit", "exit":
			return
		default:
			fmt.Println("commands: login | register | whoami | quote <ticker> | logout | quit")
		}
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Printf("%s: ", label)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func printQuote(ctx context.Context, api *resty.Client, ticker string) {
	var quote domain.Quote
	resp, err := api.R().
		SetContext(ctx).
		SetResult(&quote).
		Get("/stocks/quote/" + strings.ToUpper(ticker))
	if err != nil {
		fmt.Printf("quote failed: %v\n", err)
		return
	}
	if resp.IsError() {
		fmt.Printf("quote failed with status %d\n", resp.StatusCode())
		return
	}
	fmt.Printf("%s  %.2f  %+.2f (%+.2f%%)\n", quote.Symbol, quote.Price, quote.Change, quote.ChangePercent)
}

func displayName(user *session.User) string {
	if user == nil {
		return "nobody"
	}
	switch {
	case user.FullName != "":
		return user.FullName
	case user.Username != "":
		return user.Username
	default:
		return user.Email
	}
}
