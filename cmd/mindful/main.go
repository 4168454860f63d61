package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/mindfulhq/mindful/internal/ai"
	"github.com/mindfulhq/mindful/internal/chat"
	"github.com/mindfulhq/mindful/internal/config"
	"github.com/mindfulhq/mindful/internal/identity"
	"github.com/mindfulhq/mindful/internal/store"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

func openStore(cfg config.Config) (store.KV, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		return store.OpenSQLite(cfg.SQLitePath)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewRedis(client), nil
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND=%q", cfg.StorageBackend)
	}
}

func buildProvider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	reg := ai.NewRegistry()
	reg.Register("mindful", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewMindfulProvider(cfg.APIBaseURL), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	return reg.Get(ctx, cfg.AIProvider, cfg.OllamaModel)
}

func promptLine(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func signIn(ctx context.Context, idc *identity.Client, in *bufio.Reader) (*identity.User, error) {
	user, err := idc.Current(ctx)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, identity.ErrNoUser) {
		return nil, err
	}

	for {
		choice, err := promptLine(in, "Sign [i]n or [r]egister? ")
		if err != nil {
			return nil, err
		}
		email, err := promptLine(in, "Email: ")
		if err != nil {
			return nil, err
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(strings.ToLower(choice), "r") {
			name, err := promptLine(in, "Name: ")
			if err != nil {
				return nil, err
			}
			user, err = idc.Register(ctx, name, email, password)
		} else {
			user, err = idc.Login(ctx, email, password)
		}
		if err == nil {
			return user, nil
		}
		fmt.Println(noticeStyle.Render(err.Error()))
	}
}

func renderSession(sess *chat.Session) {
	fmt.Println()
	fmt.Println(titleStyle.Render(sess.Title))
	for _, m := range sess.Messages {
		renderMessage(m)
	}
}

func renderMessage(m chat.Message) {
	who := "Mindful"
	style := assistantStyle
	if m.Author == chat.AuthorUser {
		who = "You"
		style = userStyle
	}
	stamp := dimStyle.Render(m.CreatedAt.Format("15:04"))
	fmt.Printf("%s %s\n%s\n", style.Render(who), stamp, m.Body)
}

func renderList(summaries []chat.Summary) {
	fmt.Println(titleStyle.Render("Your conversations"))
	for i, s := range summaries {
		line := fmt.Sprintf("%2d. %s", i+1, s.Title)
		if s.Preview != "" {
			line += dimStyle.Render("  — " + s.Preview)
		}
		fmt.Println(line)
	}
}

func pickSession(summaries []chat.Summary, arg string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(summaries) {
		return "", false
	}
	return summaries[n-1].SessionID, true
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	in := bufio.NewReader(os.Stdin)

	idc := identity.NewClient(cfg.APIBaseURL, kv)
	user, err := signIn(ctx, idc, in)
	if err != nil {
		log.Fatalf("sign in: %v", err)
	}
	fmt.Printf("Welcome back, %s.\n", user.Name)

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	repo := chat.NewRepository(kv, chat.WithWarnFunc(log.Printf))
	ctrl, err := chat.NewController(repo, provider, user.ID,
		chat.WithContextWindow(cfg.ChatContextWindowSize),
		chat.WithNotifyFunc(func(text string) {
			fmt.Println(noticeStyle.Render(text))
		}),
	)
	if err != nil {
		log.Fatalf("controller: %v", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("load sessions: %v", err)
	}
	renderSession(ctrl.Active())

	fmt.Println(dimStyle.Render("Commands: /new /list /switch <n> /delete <n> /logout /quit"))

	for {
		line, err := promptLine(in, "> ")
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return

		case line == "/logout":
			if err := idc.Logout(ctx); err != nil {
				fmt.Println(noticeStyle.Render(err.Error()))
			}
			return

		case line == "/new":
			if err := ctrl.NewSession(ctx); err != nil {
				fmt.Println(noticeStyle.Render(err.Error()))
				continue
			}
			renderSession(ctrl.Active())

		case line == "/list":
			renderList(ctrl.Summaries())

		case strings.HasPrefix(line, "/switch"):
			id, ok := pickSession(ctrl.Summaries(), strings.TrimPrefix(line, "/switch"))
			if !ok {
				fmt.Println(noticeStyle.Render("usage: /switch <n> (see /list)"))
				continue
			}
			if err := ctrl.SwitchSession(ctx, id); err != nil {
				fmt.Println(noticeStyle.Render(err.Error()))
				continue
			}
			renderSession(ctrl.Active())

		case strings.HasPrefix(line, "/delete"):
			id, ok := pickSession(ctrl.Summaries(), strings.TrimPrefix(line, "/delete"))
			if !ok {
				fmt.Println(noticeStyle.Render("usage: /delete <n> (see /list)"))
				continue
			}
			if err := ctrl.DeleteSession(ctx, id); err != nil {
				fmt.Println(noticeStyle.Render(err.Error()))
				continue
			}
			renderSession(ctrl.Active())

		default:
			if err := ctrl.SendMessage(ctx, line); err != nil {
				fmt.Println(noticeStyle.Render(err.Error()))
				continue
			}
			fmt.Println(dimStyle.Render("Mindful is typing..."))
			select {
			case res := <-ctrl.Replies():
				if err := ctrl.HandleReply(ctx, res); err != nil {
					fmt.Println(noticeStyle.Render(err.Error()))
				}
				if ctrl.State() == chat.StateFailed {
					ctrl.Acknowledge()
				} else if sess := ctrl.Active(); sess != nil && len(sess.Messages) > 0 {
					renderMessage(sess.Messages[len(sess.Messages)-1])
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
