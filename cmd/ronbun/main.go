// Package main is the Ronbun CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/analysis"
	"github.com/hyperjump/ronbun/internal/catalog"
	"github.com/hyperjump/ronbun/internal/cli"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/generation"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/report"
	"github.com/hyperjump/ronbun/internal/retrieval"
	"github.com/hyperjump/ronbun/internal/server"
	"github.com/hyperjump/ronbun/internal/storage"
	"github.com/hyperjump/ronbun/internal/watcher"
	"github.com/hyperjump/ronbun/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ronbun/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "ronbun server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				applyEnvOverrides(cfg)
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, path, nil
}

// applyEnvOverrides lets deployments point the collaborators at a different
// Ollama without editing the config file. OLLAMA_HOST is the variable the
// Ollama tooling itself honors.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Embedding.BaseURL = v
		cfg.Generation.BaseURL = v
	}
	if v := os.Getenv("RONBUN_GENERATION_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("RONBUN_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "summarize":
		runSummarize()
	case "compare":
		runCompare()
	case "quality":
		runQuality()
	case "papers":
		runPapers()
	case "delete":
		runDelete()
	case "export":
		runExport()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ronbun version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, retrieval, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	loaded, err := components.Retriever.LoadAll(context.Background())
	if err != nil {
		logger.Warn("vector index load incomplete", zap.Error(err))
	}
	logger.Info("vector indexes loaded", zap.Int("papers", loaded))

	engine := components.Engine
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if _, err := engine.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := engine.DeleteBySourcePath(context.Background(), path); err != nil {
				logger.Warn("watch delete by path failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(engine, watchSvc, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun ingest [flags] <pdf-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n := 0
		walkErr := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".pdf") {
				return err
			}
			paper, ingestErr := components.Engine.IngestFile(ctx, p)
			if ingestErr != nil {
				fmt.Printf("Skipped %s: %v\n", p, ingestErr)
				return nil
			}
			fmt.Printf("Ingested %s (%s)\n", paper.ID, paper.Filename)
			n++
			return nil
		})
		if walkErr != nil {
			fmt.Printf("Ingesting directory failed: %v\n", walkErr)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d paper(s) from %s\n", n, path)
		return
	}
	paper, err := components.Engine.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Paper ingested: %s\n", paper.ID)
	if paper.Title != "" {
		fmt.Printf("Title: %s\n", paper.Title)
	}
	fmt.Printf("Pages: %d | Chunks: %d | Quality: %d\n",
		paper.PageCount, paper.ChunkCount, paper.Quality.Overall)
}

// joinArgs joins positional arguments with spaces so multi-word questions
// and queries work the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front of the slice so that flag.Parse() sees
// them. Go's flag package stops at the first non-flag argument, so
// "ronbun ask abc123 how many heads -output json" would otherwise leave
// -output unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseOutputFormat maps the -output flag value, exiting on unknown values.
func parseOutputFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	k := fs.Int("k", 0, "chunks to retrieve (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 2 {
		fmt.Println("Usage: ronbun ask [flags] <paper-id> <question>")
		os.Exit(1)
	}
	paperID := fs.Arg(0)
	question := joinArgs(fs.Args()[1:])
	if question == "" {
		fmt.Println("Usage: ronbun ask [flags] <paper-id> <question>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)
	req := &models.AskRequest{Question: question, K: *k}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids the SQLite/bleve
		// lock conflict with a second process).
		var answer models.Answer
		if err := httpPostJSON(*serverURL+"/api/v1/papers/"+url.PathEscape(paperID)+"/ask", req, &answer); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, &answer, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()
	answer, err := components.Engine.Ask(context.Background(), paperID, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSummarize() {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun summarize [flags] <paper-id>")
		os.Exit(1)
	}
	paperID := fs.Arg(0)
	format := parseOutputFormat(*outputFormat)

	if *serverURL != "" {
		var answer models.Answer
		if err := httpGetJSON(*serverURL+"/api/v1/papers/"+url.PathEscape(paperID)+"/summary", &answer); err != nil {
			fmt.Fprintf(os.Stderr, "Summarize failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, &answer, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()
	answer, err := components.Engine.Summarize(context.Background(), paperID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summarize failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < models.MinComparePapers {
		fmt.Printf("Usage: ronbun compare [flags] <paper-id> <paper-id> [...]  (%d-%d papers)\n",
			models.MinComparePapers, models.MaxComparePapers)
		os.Exit(1)
	}
	req := &models.CompareRequest{PaperIDs: fs.Args()}
	format := parseOutputFormat(*outputFormat)

	if *serverURL != "" {
		var cmp models.Comparison
		if err := httpPostJSON(*serverURL+"/api/v1/compare", req, &cmp); err != nil {
			fmt.Fprintf(os.Stderr, "Compare failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteComparison(os.Stdout, &cmp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()
	cmp, err := components.Engine.Compare(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compare failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteComparison(os.Stdout, cmp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runQuality() {
	fs := flag.NewFlagSet("quality", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun quality [flags] <paper-id>")
		os.Exit(1)
	}
	paperID := fs.Arg(0)

	var paper models.Paper
	if *serverURL != "" {
		if err := httpGetJSON(*serverURL+"/api/v1/papers/"+url.PathEscape(paperID), &paper); err != nil {
			fmt.Fprintf(os.Stderr, "Quality failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		p, err := components.Engine.GetPaper(context.Background(), paperID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Quality failed: %v\n", err)
			os.Exit(1)
		}
		paper = *p
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(paper.Quality); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("file:        %s\n", paper.Filename)
		if paper.Title != "" {
			fmt.Printf("title:       %s\n", paper.Title)
		}
		fmt.Printf("methodology: %d\n", paper.Quality.Methodology)
		fmt.Printf("data:        %d\n", paper.Quality.Data)
		fmt.Printf("citation:    %d\n", paper.Quality.Citation)
		fmt.Printf("clarity:     %d\n", paper.Quality.Clarity)
		fmt.Printf("overall:     %d\n", paper.Quality.Overall)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runPapers() {
	fs := flag.NewFlagSet("papers", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	limit := fs.Int("limit", 50, "number of papers to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := joinArgs(fs.Args())
	format := parseOutputFormat(*outputFormat)

	if *serverURL != "" {
		u := fmt.Sprintf("%s/api/v1/papers?limit=%d", *serverURL, *limit)
		if query != "" {
			u += "&q=" + url.QueryEscape(query)
		}
		var out struct {
			Papers      []*models.Paper `json:"papers"`
			Suggestions []string        `json:"suggestions"`
		}
		if err := httpGetJSON(u, &out); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WritePapers(os.Stdout, out.Papers, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		if len(out.Papers) == 0 && len(out.Suggestions) > 0 {
			fmt.Printf("Did you mean: %s\n", strings.Join(out.Suggestions, ", "))
		}
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()
	ctx := context.Background()

	var papers []*models.Paper
	var suggestions []string
	if query != "" {
		result, err := components.Engine.SearchCatalog(ctx, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		for _, m := range result.Matches {
			paper, err := components.Engine.GetPaper(ctx, m.PaperID)
			if err != nil {
				continue
			}
			papers = append(papers, paper)
		}
		suggestions = result.Suggestions
	} else {
		all, err := components.Engine.ListPapers(ctx, 0, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		papers = all
	}
	if err := cli.WritePapers(os.Stdout, papers, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(papers) == 0 && len(suggestions) > 0 {
		fmt.Printf("Did you mean: %s\n", strings.Join(suggestions, ", "))
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ronbun delete [flags] <paper-id>")
		os.Exit(1)
	}
	paperID := fs.Arg(0)

	components := mustInitialize(*configPath)
	defer components.Close()

	if err := components.Engine.Delete(context.Background(), paperID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Paper deleted: %s\n", paperID)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	out := fs.String("out", "ronbun-report.xlsx", "output file path")
	withCompare := fs.Bool("compare", false, "include a comparison sheet (requires 2-5 paper ids)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	ids := fs.Args()
	if *withCompare && (len(ids) < models.MinComparePapers || len(ids) > models.MaxComparePapers) {
		fmt.Printf("-compare requires %d-%d paper ids\n", models.MinComparePapers, models.MaxComparePapers)
		os.Exit(1)
	}

	if *serverURL != "" {
		u := *serverURL + "/api/v1/report"
		params := url.Values{}
		if len(ids) > 0 {
			params.Set("ids", strings.Join(ids, ","))
		}
		if *withCompare {
			params.Set("compare", "true")
		}
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		if err := httpGetFile(u, *out); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Report written to %s\n", *out)
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()
	ctx := context.Background()

	var papers []*models.Paper
	if len(ids) > 0 {
		for _, id := range ids {
			paper, err := components.Engine.GetPaper(ctx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
				os.Exit(1)
			}
			papers = append(papers, paper)
		}
	} else {
		all, err := components.Engine.ListPapers(ctx, 0, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		papers = all
	}
	if len(papers) == 0 {
		fmt.Fprintln(os.Stderr, "No papers to report on")
		os.Exit(1)
	}

	var comparison *models.Comparison
	if *withCompare {
		cmp, err := components.Engine.Compare(ctx, &models.CompareRequest{PaperIDs: ids})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Compare failed: %v\n", err)
			os.Exit(1)
		}
		comparison = cmp
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	if err := report.Write(f, papers, comparison); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s (%d papers)\n", *out, len(papers))
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ronbun watch <add|remove|list> [path]")
		fmt.Println("  ronbun watch add <path>     Add directory to watch")
		fmt.Println("  ronbun watch remove <path>  Remove directory from watch")
		fmt.Println("  ronbun watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: ronbun watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: ronbun watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := httpGetJSON(*serverURL+"/api/v1/watch/directories", &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	EmbeddingModel  string `json:"embedding_model,omitempty"`
	GenerationModel string `json:"generation_model,omitempty"`
	ChunkSize       int    `json:"chunk_size,omitempty"`
	ChunkOverlap    int    `json:"chunk_overlap,omitempty"`
	RetrieveK       int    `json:"retrieve_k,omitempty"`
	DatabasePath    string `json:"database_path,omitempty"`
	UploadsDir      string `json:"uploads_dir,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Papers         int64                 `json:"papers"`
	Chunks         int64                 `json:"chunks"`
	IndexedPapers  int                   `json:"indexed_papers"`
	DiskUsageBytes int64                 `json:"disk_usage_bytes"`
	WatchedDirs    []string              `json:"watched_dirs,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		if err := httpGetJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		st, err := components.Engine.Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Papers:         st.Papers,
			Chunks:         st.Chunks,
			IndexedPapers:  st.IndexedPapers,
			DiskUsageBytes: st.DiskBytes,
			WatchedDirs:    st.WatchedDirs,
			Config: &statusConfigResponse{
				EmbeddingModel:  st.EmbeddingModel,
				GenerationModel: st.GenerationModel,
				ChunkSize:       cfg.Analysis.ChunkSize,
				ChunkOverlap:    cfg.Analysis.ChunkOverlap,
				RetrieveK:       cfg.Analysis.RetrieveK,
				DatabasePath:    cfg.Storage.DatabasePath,
				UploadsDir:      cfg.Storage.UploadsDir,
			},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("papers:             %d   # papers in the library\n", status.Papers)
		fmt.Printf("chunks:             %d   # text chunks across all papers\n", status.Chunks)
		fmt.Printf("indexed_papers:     %d   # papers with a loaded vector index\n", status.IndexedPapers)
		fmt.Printf("disk_usage_bytes:   %d   # database + indices + uploads on disk\n", status.DiskUsageBytes)
		if len(status.WatchedDirs) > 0 {
			fmt.Printf("watched_dirs:       %s\n", strings.Join(status.WatchedDirs, ", "))
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("embedding_model:    %s\n", status.Config.EmbeddingModel)
			fmt.Printf("generation_model:   %s\n", status.Config.GenerationModel)
			if status.Config.ChunkSize > 0 {
				fmt.Printf("chunk_size:         %d\n", status.Config.ChunkSize)
			}
			if status.Config.ChunkOverlap > 0 {
				fmt.Printf("chunk_overlap:      %d\n", status.Config.ChunkOverlap)
			}
			if status.Config.RetrieveK > 0 {
				fmt.Printf("retrieve_k:         %d\n", status.Config.RetrieveK)
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:      %s\n", status.Config.DatabasePath)
			}
			if status.Config.UploadsDir != "" {
				fmt.Printf("uploads_dir:        %s\n", status.Config.UploadsDir)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// httpGetJSON GETs url and decodes the JSON response into out.
func httpGetJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// httpPostJSON POSTs in as JSON to url and decodes the response into out.
func httpPostJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// httpGetFile GETs url and writes the raw response body to path.
func httpGetFile(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// mustInitialize loads config, builds a logger, and initializes components,
// exiting on any failure. Used by the direct-mode CLI paths.
func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Retriever.LoadAll(context.Background()); err != nil {
		logger.Warn("vector index load incomplete", zap.Error(err))
	}
	return components
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Catalog   catalog.Catalog
	Retriever *retrieval.Retriever
	Generator generation.Generator
	Engine    *analysis.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder := buildEmbedder(cfg, logger)

	cat, err := catalog.NewBleveCatalog(cfg.Storage.CatalogIndexPath)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	retrOpts := []retrieval.RetrieverOption{}
	if debug {
		retrOpts = append(retrOpts, retrieval.WithLogger(logger))
	}
	retriever := retrieval.NewRetriever(store, embedder, cfg.Storage.VectorDir, cfg.Analysis.RetrieveK, retrOpts...)

	generator := generation.NewOllamaGenerator(
		cfg.Generation.BaseURL,
		cfg.Generation.Model,
		cfg.Generation.Temperature,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second,
	)

	engine := analysis.NewEngine(cfg, store, retriever, cat, extract.NewPDFExtractor(), embedder, generator, logger)

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Catalog:   cat,
		Retriever: retriever,
		Generator: generator,
		Engine:    engine,
	}, nil
}

// buildEmbedder picks the embedding provider. An ONNX model that fails to
// load falls back to Ollama so the server still starts; the dimension
// mismatch is logged since existing vectors would need a re-ingest.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case "onnx":
		onnx, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err == nil {
			return onnx
		}
		if logger != nil {
			logger.Warn("onnx embedder unavailable, falling back to ollama",
				zap.String("model_path", cfg.Embedding.ModelPath),
				zap.Error(err))
		}
		return embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model,
			cfg.Embedding.Dimensions, cfg.Embedding.CacheSize)
	default:
		return embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model,
			cfg.Embedding.Dimensions, cfg.Embedding.CacheSize)
	}
}

func printUsage() {
	fmt.Println(`ronbun - Citation-grounded analysis for academic papers

Usage:
  ronbun server [flags]                      Start the HTTP server
  ronbun ingest [flags] <pdf-or-directory>   Ingest a PDF (or every PDF in a directory)
  ronbun ask [flags] <paper-id> <question>   Ask a question against one paper
  ronbun summarize [flags] <paper-id>        Generate a structured summary
  ronbun compare [flags] <id> <id> [...]     Compare 2-5 papers
  ronbun quality [flags] <paper-id>          Show quality scores
  ronbun papers [flags] [query]              List papers, or search the catalog
  ronbun delete [flags] <paper-id>           Delete a paper
  ronbun export [flags] [paper-id ...]       Write an XLSX quality report
  ronbun watch <add|remove|list>             Manage watched directories
  ronbun status [flags]                      Show library/storage status
  ronbun version                             Show version
  ronbun help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ronbun/config.yaml)
  --debug            Enable debug logging (watch events, retrieval, etc.)

Ask Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage when the server is not running.
  --k int            Chunks to retrieve (default from config)
  --output string    Output format: text or json (default: text)

Compare Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Export Flags:
  --out string       Output file (default: ronbun-report.xlsx)
  --compare          Include a comparison sheet (requires 2-5 paper ids)

Examples:
  ronbun server
  ronbun ingest attention.pdf
  ronbun ingest ~/papers
  ronbun ask 3fa2bc417d08 how many attention heads does the base model use
  ronbun summarize 3fa2bc417d08
  ronbun compare 3fa2bc417d08 9e1d22ab04c1
  ronbun papers transformer
  ronbun export --compare 3fa2bc417d08 9e1d22ab04c1
  ronbun watch add ~/papers/inbox
  ronbun status --output json`)
}
