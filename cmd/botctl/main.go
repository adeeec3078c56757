// botctl is the operator CLI for a botdash server: create chatbots from
// local knowledge files, list and delete them, repair orphaned records.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/botdash/botdash/internal/attempt"
	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/client"
	"github.com/botdash/botdash/internal/config"
	"github.com/botdash/botdash/internal/notify"
	"github.com/botdash/botdash/internal/storage"
	"github.com/botdash/botdash/internal/tokens"
	"github.com/botdash/botdash/internal/uploader"
	"github.com/botdash/botdash/internal/workspace"
	"github.com/botdash/botdash/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	logger.Init(envOr("LOG_LEVEL", "warn"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = cmdCreate(ctx, args)
	case "list", "ls":
		err = cmdList(ctx)
	case "delete", "rm":
		err = cmdDelete(ctx, args, os.Stdin)
	case "orphans":
		err = cmdOrphans(ctx)
	case "repair":
		err = cmdRepair(ctx, args)
	case "links":
		err = cmdLinks(ctx, args)
	case "whoami":
		err = cmdWhoami(ctx)
	case "logout":
		err = cmdLogout(ctx)
	case "token":
		err = cmdToken(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: botctl <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  create [flags] <file>...   Create a chatbot from knowledge files (PDF or TXT, <10MB each)")
	fmt.Println("      --name <name>          Chatbot name (required)")
	fmt.Println("      --personality <style>  Friendly, Professional, Humorous or Technical (default Friendly)")
	fmt.Println("      --color <#RRGGBB>      Widget theme color (default #3b82f6)")
	fmt.Println("      --prompt <text>        System prompt (required)")
	fmt.Println("      --prompt-file <path>   Read the system prompt from a file")
	fmt.Println("      --direct               Upload straight to object storage (needs MINIO_* env)")
	fmt.Println("  list                       List your chatbots, newest first")
	fmt.Println("  delete <id> [-y]           Delete a chatbot after confirmation")
	fmt.Println("  orphans                    List chatbots that never got an embed snippet")
	fmt.Println("  repair <id>                Store the missing embed snippet of a chatbot")
	fmt.Println("  links <id>                 Print download links for a chatbot's knowledge files")
	fmt.Println("  whoami                     Show the signed-in caller")
	fmt.Println("  logout                     Revoke BOTDASH_TOKEN")
	fmt.Println("  token --sub <id>           Issue a development token (needs JWT_SECRET; lifetime JWT_TOKEN_TTL minutes)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BOTDASH_URL       API base URL (default: http://localhost:8080)")
	fmt.Println("  BOTDASH_TOKEN     Bearer credential")
	fmt.Println()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() *client.Client {
	return client.New(envOr("BOTDASH_URL", "http://localhost:8080"), os.Getenv("BOTDASH_TOKEN"))
}

// terminalNotifier prints notifications, errors to stderr.
func terminalNotifier(out, errOut io.Writer) notify.Notifier {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)
	return notify.Func(func(n notify.Notification) {
		switch n.Level {
		case notify.Success:
			green.Fprintf(out, "✓ %s ", n.Title)
			fmt.Fprintln(out, n.Message)
		case notify.Error:
			red.Fprintf(errOut, "✗ %s: ", n.Title)
			fmt.Fprintln(errOut, n.Message)
		default:
			cyan.Fprintf(out, "%s: ", n.Title)
			fmt.Fprintln(out, n.Message)
		}
	})
}

type createArgs struct {
	req    chatbot.ProvisionRequest
	files  []string
	direct bool
}

func parseCreateArgs(args []string) (createArgs, error) {
	ca := createArgs{req: chatbot.ProvisionRequest{PersonalityStyle: chatbot.Friendly, ThemeColor: "#3b82f6"}}
	for i := 0; i < len(args); i++ {
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s needs a value", args[i])
			}
			i++
			return args[i], nil
		}
		var err error
		switch args[i] {
		case "--name", "-n":
			ca.req.Name, err = next()
		case "--personality", "-p":
			var v string
			v, err = next()
			ca.req.PersonalityStyle = chatbot.PersonalityStyle(v)
		case "--color", "-c":
			ca.req.ThemeColor, err = next()
		case "--prompt":
			ca.req.SystemPrompt, err = next()
		case "--prompt-file":
			var p string
			if p, err = next(); err == nil {
				var b []byte
				if b, err = os.ReadFile(p); err == nil {
					ca.req.SystemPrompt = strings.TrimSpace(string(b))
				}
			}
		case "--direct":
			ca.direct = true
		default:
			if strings.HasPrefix(args[i], "-") {
				return ca, fmt.Errorf("unknown flag %s", args[i])
			}
			ca.files = append(ca.files, args[i])
		}
		if err != nil {
			return ca, err
		}
	}
	if ca.req.Name == "" || ca.req.SystemPrompt == "" {
		return ca, errors.New("usage: create --name <name> --prompt <text> [--personality <style>] [--color <#RRGGBB>] [--direct] <file>...")
	}
	return ca, nil
}

func cmdCreate(ctx context.Context, args []string) error {
	ca, err := parseCreateArgs(args)
	if err != nil {
		return err
	}
	files, err := localFiles(ca.files)
	if err != nil {
		return err
	}

	c := newClient()
	n := terminalNotifier(os.Stdout, os.Stderr)
	deps := attempt.Deps{
		Session:     c,
		Uploader:    c.Resources(),
		Provisioner: c,
		Notifier:    n,
	}
	if ca.direct {
		cfg := directStorageConfig()
		store, err := storage.NewMinIOStorage(ctx, &cfg)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		deps.Uploader = uploader.New(store)
	}

	bot, err := attempt.New(deps).Submit(ctx, ca.req, files)
	if err != nil {
		if id, ok := orphanOf(err); ok {
			color.Yellow("Chatbot %s was saved without an embed snippet; run `botctl repair %s`.\n", id, id)
		}
		return errors.New("chatbot was not created")
	}

	cyan := color.New(color.FgCyan)
	fmt.Printf("  ID:        %s\n", bot.ID)
	fmt.Printf("  Files:     %d\n", len(bot.ResourceFilePaths))
	fmt.Println()
	cyan.Println("  Embed snippet:")
	fmt.Println(bot.EmbedSnippet)
	return nil
}

func orphanOf(err error) (string, bool) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.ChatbotID != "" {
		return apiErr.ChatbotID, true
	}
	return chatbot.OrphanID(err)
}

func directStorageConfig() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
		Bucket:    envOr("MINIO_BUCKET", "chatbot-resources"),
	}
}

func cmdList(ctx context.Context) error {
	view := workspace.New(newClient(), terminalNotifier(os.Stdout, os.Stderr))
	if err := view.Refresh(ctx); err != nil {
		return err
	}
	printChatbots(os.Stdout, "Chatbots", view.Items())
	return nil
}

func cmdOrphans(ctx context.Context) error {
	list, err := newClient().Orphans(ctx)
	if err != nil {
		return err
	}
	printChatbots(os.Stdout, "Chatbots without embed snippet", list)
	return nil
}

func printChatbots(out io.Writer, title string, list []*chatbot.Chatbot) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(out)
	cyan.Fprintf(out, "  %s\n", title)
	cyan.Fprintf(out, "  %s\n", strings.Repeat("-", len(title)))

	if len(list) == 0 {
		fmt.Fprintln(out, "  (none)")
		fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tSTYLE\tCOLOR\tFILES\tEMBED\tCREATED")
	fmt.Fprintln(w, "  --\t----\t-----\t-----\t-----\t-----\t-------")
	for _, b := range list {
		embed := "yes"
		if b.Orphaned() {
			embed = "missing"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, truncate(b.Name, 24), b.PersonalityStyle, b.ThemeColor,
			len(b.ResourceFilePaths), embed, b.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Fprintln(out)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func cmdDelete(ctx context.Context, args []string, in io.Reader) error {
	var id string
	yes := false
	for _, a := range args {
		switch a {
		case "-y", "--yes":
			yes = true
		default:
			id = a
		}
	}
	if id == "" {
		return errors.New("usage: delete <chatbot-id> [-y]")
	}

	view := workspace.New(newClient(), terminalNotifier(os.Stdout, os.Stderr))
	if err := view.Refresh(ctx); err != nil {
		return err
	}
	pending, err := view.RequestDelete(id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if !yes && !confirm(in, os.Stdout, pending.Prompt()) {
		view.CancelDelete(pending)
		fmt.Println("Cancelled.")
		return nil
	}
	return view.ConfirmDelete(ctx, pending)
}

// confirm asks a y/N question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func cmdRepair(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: repair <chatbot-id>")
	}
	bot, err := newClient().RepairEmbed(ctx, args[0])
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("✓ Embed snippet stored for %s\n", bot.ID)
	fmt.Println(bot.EmbedSnippet)
	return nil
}

func cmdLinks(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: links <chatbot-id>")
	}
	links, err := newClient().ResourceLinks(ctx, args[0])
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Println("  (no knowledge files)")
		return nil
	}
	for _, l := range links {
		color.New(color.FgCyan).Printf("  %s\n", l.Path)
		fmt.Printf("    %s\n", l.URL)
	}
	return nil
}

func cmdWhoami(ctx context.Context) error {
	caller, err := newClient().Caller(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  ID:     %s\n", caller.ID)
	if caller.Email != "" {
		fmt.Printf("  Email:  %s\n", caller.Email)
	}
	return nil
}

func cmdLogout(ctx context.Context) error {
	if os.Getenv("BOTDASH_TOKEN") == "" {
		return errors.New("BOTDASH_TOKEN is not set")
	}
	if err := newClient().Logout(ctx); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("✓ Token revoked")
	return nil
}

func cmdToken(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	caller, ttl, err := parseTokenArgs(args, cfg.JWT.TokenTTL)
	if err != nil {
		return err
	}
	tok, err := tokens.Issue(cfg.JWT.Secret, cfg.JWT.Issuer, caller, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// parseTokenArgs reads --sub, --email and --ttl; ttl defaults to def.
func parseTokenArgs(args []string, def time.Duration) (chatbot.Caller, time.Duration, error) {
	var caller chatbot.Caller
	ttl := def
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			return caller, 0, fmt.Errorf("%s needs a value", args[i])
		}
		switch args[i] {
		case "--sub":
			caller.ID = args[i+1]
		case "--email":
			caller.Email = args[i+1]
		case "--ttl":
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return caller, 0, fmt.Errorf("--ttl: %w", err)
			}
			ttl = d
		default:
			return caller, 0, fmt.Errorf("unknown flag %s", args[i])
		}
		i++
	}
	if caller.ID == "" {
		return caller, 0, errors.New("usage: token --sub <id> [--email <addr>] [--ttl 1h]")
	}
	if ttl <= 0 {
		return caller, 0, errors.New("token lifetime must be positive")
	}
	return caller, ttl, nil
}
