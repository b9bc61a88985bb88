// Package main is the lexembed CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/lexembed/internal/cli"
	"github.com/hyperjump/lexembed/internal/client"
	"github.com/hyperjump/lexembed/internal/config"
	"github.com/hyperjump/lexembed/internal/embedding"
	"github.com/hyperjump/lexembed/internal/extract"
	"github.com/hyperjump/lexembed/internal/indexer"
	"github.com/hyperjump/lexembed/internal/metrics"
	"github.com/hyperjump/lexembed/internal/models"
	"github.com/hyperjump/lexembed/internal/server"
	"github.com/hyperjump/lexembed/internal/vector"
	"github.com/hyperjump/lexembed/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/lexembed/config.yaml"
	// serverURLEnv overrides the default server URL of the client commands.
	serverURLEnv = "ITALIAN_BERT_URL"
)

var defaultExtensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file means built-in
// defaults. Returns the config and the path actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "embed":
		runEmbed()
	case "embed-file":
		runEmbedFile()
	case "health":
		runHealth()
	case "similarity":
		runSimilarity()
	case "version", "--version", "-v":
		fmt.Printf("lexembed version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-request logs, batch details)")
	host := fs.String("host", "", "listen host (overrides config)")
	port := fs.Int("port", 0, "listen port (overrides config)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		exitf("Failed to load config: %v", err)
	}
	applyServerOverrides(cfg, *host, *port)
	if err := config.Validate(cfg); err != nil {
		exitf("%v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		exitf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("model", cfg.Model.Name),
	)

	loader, err := onnxLoader(cfg, logger)
	if err != nil {
		logger.Fatal("Invalid model configuration", zap.Error(err))
	}
	svc, srv := newServer(cfg, logger)
	defer svc.Close()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Health answers 503 until the model is loaded. A load failure is fatal.
	go func() {
		if err := svc.Start(ctx, loader); err != nil {
			logger.Fatal("Failed to load model", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func applyServerOverrides(cfg *config.Config, host string, port int) {
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
}

// newServer wires the embedding service, metrics and HTTP server from cfg.
func newServer(cfg *config.Config, logger *zap.Logger) (*embedding.Service, *server.Server) {
	svc := embedding.NewService(embedding.Options{
		ModelName: cfg.Model.Name,
		MaxTokens: cfg.Model.MaxTokens,
		BatchSize: cfg.Model.BatchSize,
		CacheSize: cfg.Model.CacheSize,
	}, logger)
	var m *metrics.Metrics
	if cfg.Metrics.EnabledOrDefault() {
		m = metrics.New("lexembed", svc.Ready)
	}
	return svc, server.NewServer(svc, cfg, m, logger)
}

func onnxLoader(cfg *config.Config, logger *zap.Logger) (embedding.Loader, error) {
	devices, err := embedding.ParseDevices(cfg.Model.Devices)
	if err != nil {
		return nil, err
	}
	return embedding.ONNXLoader(cfg.Model.TokenizerPath, cfg.Model.VocabPath, cfg.Model.Lowercase, embedding.ONNXOptions{
		ModelPath:         cfg.Model.ModelPath,
		SharedLibraryPath: cfg.Model.SharedLibraryPath,
		HiddenSize:        cfg.Model.HiddenSize,
		InputNames:        cfg.Model.InputNames,
		OutputName:        cfg.Model.OutputName,
		Devices:           devices,
	}, logger), nil
}

func defaultServerURL() string {
	if u := os.Getenv(serverURLEnv); u != "" {
		return u
	}
	return client.DefaultBaseURL
}

// reorderArgs moves flags (and their values) ahead of the positional arguments so that
// flag.Parse sees them all, since Go's flag package stops at the first non-flag argument.
// Both groups keep their original order. Everything after "--" is positional.
func reorderArgs(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positional, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			rest = args[i:]
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if rest == nil {
		return append(flags, positional...)
	}
	flags = append(flags, "--")
	flags = append(flags, positional...)
	return append(flags, rest[1:]...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// readTexts returns args, or one text per non-blank line of r when args is empty or "-".
func readTexts(args []string, r io.Reader) ([]string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return args, nil
	}
	var texts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return texts, nil
}

// parseExtensions splits a comma-separated extension list.
func parseExtensions(s string) []string {
	var exts []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, strings.ToLower(e))
		}
	}
	return exts
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		exitf("%v", err)
	}
	return format
}

// connect returns a client, optionally blocking until the server reports healthy.
// newClient builds a client for serverURL. A positive timeout bounds every request.
func newClient(serverURL string, timeout time.Duration, logger *zap.Logger) *client.Client {
	opts := []client.Option{client.WithLogger(logger)}
	if timeout > 0 {
		opts = append(opts, client.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return client.New(serverURL, opts...)
}

// connect waits up to wait for c's server to become ready; wait <= 0 skips the check.
func connect(ctx context.Context, c *client.Client, wait time.Duration) *client.Client {
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if _, err := c.WaitReady(waitCtx); err != nil {
			exitf("Server not ready: %v", err)
		}
	}
	return c
}

// cliLogger returns a stderr logger for client commands, exiting on failure.
func cliLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		exitf("Failed to create logger: %v", err)
	}
	return logger
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL(), "embedding server URL")
	legacy := fs.Bool("legacy", false, "use the deprecated mean-pooling endpoint")
	outputFormat := fs.String("output", "text", "output format: text, json, or compact (raw vectors)")
	wait := fs.Duration("wait", 0, "wait up to this long for the server to become ready")
	timeout := fs.Duration("timeout", 0, "per-request timeout (0 means none)")
	debug := fs.Bool("debug", false, "log readiness polling to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lexembed embed [flags] <text>... (reads stdin, one text per line, when no text is given)\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	format := parseFormat(*outputFormat)

	texts, err := readTexts(fs.Args(), os.Stdin)
	if err != nil {
		exitf("%v", err)
	}
	if len(texts) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	logger := cliLogger(*debug)
	defer logger.Sync()

	ctx := context.Background()
	c := connect(ctx, newClient(*serverURL, *timeout, logger), *wait)
	embed := c.Embed
	if *legacy {
		embed = c.EmbedLegacy
	}
	vecs, err := embed(ctx, texts...)
	if err != nil {
		exitf("Embedding failed: %v", err)
	}
	if err := cli.WriteEmbeddings(os.Stdout, texts, vecs, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runEmbedFile() {
	fs := flag.NewFlagSet("embed-file", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL(), "embedding server URL")
	chunkSize := fs.Int("chunk-size", indexer.DefaultChunkSize, "maximum chunk length in characters")
	chunkOverlap := fs.Int("chunk-overlap", indexer.DefaultChunkOverlap, "characters shared by neighbouring chunks")
	batchSize := fs.Int("batch", indexer.DefaultBatchSize, "chunks per embedding request")
	kindFlag := fs.String("kind", "", "document kind: LAW, JURISPRUDENCE, ARTICLE, TEXT, PDF, CIVIL_CODE, OTHER")
	title := fs.String("title", "", "document title (default: from the document)")
	exts := fs.String("ext", strings.Join(defaultExtensions, ","), "extensions embedded when the path is a directory")
	outputFormat := fs.String("output", "json", "output format: json (one chunk per line) or text")
	wait := fs.Duration("wait", 0, "wait up to this long for the server to become ready")
	timeout := fs.Duration("timeout", 0, "per-request timeout (0 means none)")
	debug := fs.Bool("debug", false, "log extraction and chunking details to stderr")
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: lexembed embed-file [flags] <file-or-directory>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	var kind models.Kind
	if *kindFlag != "" {
		k, err := models.ParseKind(*kindFlag)
		if err != nil {
			exitf("%v", err)
		}
		kind = k
	}
	logger := cliLogger(*debug)
	defer logger.Sync()

	chunker, err := indexer.NewChunker(*chunkSize, *chunkOverlap, nil)
	if err != nil {
		exitf("%v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	c := connect(ctx, newClient(*serverURL, *timeout, logger), *wait)
	idx := indexer.NewIndexer(extract.NewExtractor(), chunker, c,
		indexer.WithBatchSize(*batchSize),
		indexer.WithLogger(logger),
	)

	write := func(doc *models.Document, chunks []*models.DocumentChunk) error {
		if format == cli.OutputText {
			cli.WriteDocument(os.Stdout, doc, len(chunks))
		}
		return cli.WriteChunks(os.Stdout, chunks, format)
	}

	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		exitf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		n, err := idx.IndexDirectory(ctx, path, parseExtensions(*exts), kind, write)
		if err != nil {
			exitf("Embedding directory failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Embedded %d file(s) from %s\n", n, path)
		return
	}
	doc, chunks, err := idx.IndexFile(ctx, path, kind, models.Metadata{Title: *title})
	if err != nil {
		exitf("Embedding failed: %v", err)
	}
	if err := write(doc, chunks); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runHealth() {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL(), "embedding server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	wait := fs.Duration("wait", 0, "poll until the server is ready, up to this long")
	timeout := fs.Duration("timeout", 0, "per-request timeout (0 means none)")
	debug := fs.Bool("debug", false, "log readiness polling to stderr")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	logger := cliLogger(*debug)
	defer logger.Sync()

	ctx := context.Background()
	c := newClient(*serverURL, *timeout, logger)
	var (
		health *server.HealthResponse
		err    error
	)
	if *wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, *wait)
		health, err = c.WaitReady(waitCtx)
		cancel()
	} else {
		health, err = c.Health(ctx)
	}
	if err != nil {
		if client.IsUnavailable(err) {
			exitf("%s: model not loaded yet", c.BaseURL())
		}
		exitf("%s is not healthy: %v", c.BaseURL(), err)
	}
	if err := cli.WriteHealth(os.Stdout, c.BaseURL(), health, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runSimilarity() {
	fs := flag.NewFlagSet("similarity", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL(), "embedding server URL")
	limit := fs.Int("limit", 10, "number of candidates to show")
	legacy := fs.Bool("legacy", false, "use the deprecated mean-pooling endpoint")
	outputFormat := fs.String("output", "text", "output format: text or json")
	wait := fs.Duration("wait", 0, "wait up to this long for the server to become ready")
	timeout := fs.Duration("timeout", 0, "per-request timeout (0 means none)")
	debug := fs.Bool("debug", false, "log readiness polling to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lexembed similarity [flags] <query> <candidate>... (reads candidates from stdin when none are given)\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(fs, os.Args[2:]))
	format := parseFormat(*outputFormat)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)
	candidates, err := readTexts(fs.Args()[1:], os.Stdin)
	if err != nil {
		exitf("%v", err)
	}
	if len(candidates) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	logger := cliLogger(*debug)
	defer logger.Sync()

	ctx := context.Background()
	c := connect(ctx, newClient(*serverURL, *timeout, logger), *wait)
	embed := c.Embed
	if *legacy {
		embed = c.EmbedLegacy
	}
	vecs, err := embed(ctx, append([]string{query}, candidates...)...)
	if err != nil {
		exitf("Embedding failed: %v", err)
	}
	ranked, err := rank(vecs[0], candidates, vecs[1:], *limit)
	if err != nil {
		exitf("%v", err)
	}
	if err := cli.WriteRanked(os.Stdout, query, ranked, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

// rank scores candidates against the query vector and returns the best limit of them.
func rank(query []float32, candidates []string, vecs [][]float32, limit int) ([]cli.Ranked, error) {
	index, err := vector.NewMemoryIndex(len(query))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(candidates))
	texts := make(map[string]string, len(candidates))
	for i, text := range candidates {
		ids[i] = strconv.Itoa(i)
		texts[ids[i]] = text
	}
	if err := index.Add(ids, vecs); err != nil {
		return nil, err
	}
	results, err := index.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return cli.RankResults(results, texts), nil
}

func printUsage() {
	fmt.Println(`lexembed - Italian legal text embedding service

Usage:
  lexembed server [flags]                   Start the HTTP embedding server
  lexembed embed [flags] <text>...          Embed texts (stdin when no text is given)
  lexembed embed-file [flags] <path>        Extract, chunk and embed a document or directory
  lexembed health [flags]                   Show server health
  lexembed similarity [flags] <q> <c>...    Rank candidates by similarity to a query
  lexembed version                          Show version
  lexembed help                             Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/lexembed/config.yaml)
  --debug            Enable debug logging
  --host string      Listen host (overrides config)
  --port int         Listen port (overrides config)

Client Flags (embed, embed-file, health, similarity):
  --server string    Server URL (default: $ITALIAN_BERT_URL or http://localhost:8080)
  --output string    text, json or compact
  --wait duration    Wait for the model to load before sending requests
  --timeout duration Per-request timeout (default: none)
  --debug            Log readiness polling to stderr
  --legacy           Use mean pooling (embed, similarity)

Embed-file Flags:
  --chunk-size int      Maximum chunk length in characters (default: 1000)
  --chunk-overlap int   Overlap between chunks (default: 200)
  --batch int           Chunks per request (default: 32)
  --kind string         Document kind (LAW, JURISPRUDENCE, CIVIL_CODE, ...)
  --ext string          Extensions embedded from directories

Examples:
  lexembed server --port 8080
  lexembed health --wait 2m
  lexembed embed "Il contratto è nullo per difetto di causa."
  lexembed embed --output compact < massime.txt
  lexembed embed-file --kind JURISPRUDENCE sentenza.pdf > chunks.jsonl
  lexembed similarity "responsabilità extracontrattuale" "art. 2043 c.c." "art. 1218 c.c."`)
}
