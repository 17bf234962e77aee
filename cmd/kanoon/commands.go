package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/cli"
	"github.com/hyperjump/kanoon/internal/fileid"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/search"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// commonFlags are shared by every client command.
type commonFlags struct {
	configPath *string
	serverURL  *string
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = run locally without a server)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

func (c *commonFlags) format() cli.OutputFormat {
	f, err := cli.ParseFormat(*c.output)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func (c *commonFlags) remote() bool {
	return *c.serverURL != ""
}

func (c *commonFlags) client() *cli.Client {
	return cli.NewClient(*c.serverURL, 0)
}

// localRun loads config, logger and components for commands that run without a server.
type localRun struct {
	components *Components
	logger     *zap.Logger
}

func openLocal(configPath string) *localRun {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return &localRun{components: components, logger: logger}
}

func (l *localRun) close() {
	l.components.Close()
	_ = l.logger.Sync()
}

// load fills backend slots and, when withCorpus is set, re-embeds the stored corpus.
func (l *localRun) load(ctx context.Context, withGenerator, withCorpus bool) {
	if err := l.components.loadBackends(ctx, withGenerator, l.logger); err != nil {
		l.close()
		fatalf("Failed to load backends: %v", err)
	}
	if withCorpus {
		if _, err := l.components.Indexer.Restore(ctx); err != nil {
			l.close()
			fatalf("Failed to load corpus: %v", err)
		}
	}
	l.components.Registry.MarkReady()
}

// query runs one orchestrator request either against the server at path or locally.
func query[Req, Resp any](
	flags *commonFlags,
	path string,
	req Req,
	withGenerator, withCorpus bool,
	local func(context.Context, *Components, Req) (Resp, error),
) {
	format := flags.format()
	ctx := context.Background()
	var resp Resp
	if flags.remote() {
		if err := flags.client().Post(ctx, path, req, &resp); err != nil {
			fatalf("Request failed: %v", err)
		}
	} else {
		run := openLocal(*flags.configPath)
		defer run.close()
		run.load(ctx, withGenerator, withCorpus)
		var err error
		resp, err = local(ctx, run.components, req)
		if err != nil {
			fatalf("Request failed: %v", err)
		}
	}
	if err := cli.Write(os.Stdout, &resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(args))

	question := joinArgs(fs.Args())
	if question == "" {
		fatalf("Usage: kanoon chat [flags] <question>")
	}
	query(flags, "/api/v1/chat", models.ChatRequest{Question: question}, true, false,
		func(ctx context.Context, c *Components, req models.ChatRequest) (models.ChatResponse, error) {
			return c.Orchestrator.Chat(ctx, req)
		})
}

func runNotice(args []string) {
	fs := flag.NewFlagSet("notice", flag.ExitOnError)
	flags := addCommonFlags(fs)
	req := models.NoticeRequest{}
	fs.StringVar(&req.RecipientName, "recipient", "", "recipient name")
	fs.StringVar(&req.RecipientAddress, "address", "", "recipient address")
	fs.StringVar(&req.Subject, "subject", "", "notice subject")
	fs.StringVar(&req.CaseDetails, "details", "", "facts of the case")
	fs.StringVar(&req.YourName, "name", "", "sender name")
	fs.StringVar(&req.Jurisdiction, "jurisdiction", "", "jurisdiction (default: India)")
	fs.StringVar(&req.NoticeType, "type", "", "notice type (default: Legal Notice)")
	_ = fs.Parse(argsReorder(args))

	query(flags, "/api/v1/notice", req, true, false,
		func(ctx context.Context, c *Components, req models.NoticeRequest) (models.NoticeResponse, error) {
			return c.Orchestrator.GenerateNotice(ctx, req)
		})
}

func runRoadmap(args []string) {
	fs := flag.NewFlagSet("roadmap", flag.ExitOnError)
	flags := addCommonFlags(fs)
	jurisdiction := fs.String("jurisdiction", "", "jurisdiction (default: India)")
	timeline := fs.String("timeline", "", "expected timeline, e.g. \"6 months\"")
	_ = fs.Parse(argsReorder(args))

	issue := joinArgs(fs.Args())
	if issue == "" {
		fatalf("Usage: kanoon roadmap [flags] <issue>")
	}
	req := models.RoadmapRequest{IssueType: issue, Jurisdiction: *jurisdiction, Timeline: *timeline}
	query(flags, "/api/v1/roadmap", req, true, false,
		func(ctx context.Context, c *Components, req models.RoadmapRequest) (models.RoadmapResponse, error) {
			return c.Orchestrator.Roadmap(ctx, req)
		})
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := addCommonFlags(fs)
	topK := fs.Int("top-k", 0, "number of corpus passages to use (0 = config default)")
	_ = fs.Parse(argsReorder(args))

	question := joinArgs(fs.Args())
	if question == "" {
		fatalf("Usage: kanoon ask [flags] <question>")
	}
	query(flags, "/api/v1/ask", models.AskRequest{Question: question, TopK: *topK}, true, true,
		func(ctx context.Context, c *Components, req models.AskRequest) (models.AskResponse, error) {
			return c.Orchestrator.Ask(ctx, req)
		})
}

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	flags := addCommonFlags(fs)
	question := fs.String("query", "", "question to answer from the document")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 1 {
		fatalf("Usage: kanoon analyze [flags] <file>")
	}
	path := fs.Arg(0)
	format := flags.format()
	ctx := context.Background()

	var resp models.AnalysisResponse
	if flags.remote() {
		content, err := os.ReadFile(path)
		if err != nil {
			fatalf("Failed to read %s: %v", path, err)
		}
		err = flags.client().Upload(ctx, "/api/v1/analyze", path, content, map[string]string{"query": *question}, &resp)
		if err != nil {
			fatalf("Request failed: %v", err)
		}
	} else {
		run := openLocal(*flags.configPath)
		defer run.close()
		text, err := run.components.Extractor.Extract(path)
		if err != nil {
			fatalf("Could not process document: %v", err)
		}
		run.load(ctx, false, false)
		resp, err = run.components.Orchestrator.AnalyzeDocument(ctx, models.AnalysisRequest{
			DocumentText: text,
			Query:        *question,
			Filename:     filepath.Base(path),
		})
		if err != nil {
			fatalf("Request failed: %v", err)
		}
	}
	if err := cli.Write(os.Stdout, &resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addCommonFlags(fs)
	limit := fs.Int("limit", search.DefaultLimit, "number of results")
	_ = fs.Parse(argsReorder(args))

	q := joinArgs(fs.Args())
	if q == "" {
		fatalf("Usage: kanoon search [flags] <query>")
	}
	format := flags.format()
	ctx := context.Background()

	var resp *models.LibrarySearchResponse
	if flags.remote() {
		resp = &models.LibrarySearchResponse{}
		params := url.Values{"q": {q}, "limit": {strconv.Itoa(*limit)}}
		if err := flags.client().Get(ctx, "/api/v1/library/search", params, resp); err != nil {
			fatalf("Search failed: %v", err)
		}
	} else {
		run := openLocal(*flags.configPath)
		defer run.close()
		if err := run.components.loadBackends(ctx, false, run.logger); err != nil {
			fatalf("Failed to load backends: %v", err)
		}
		if _, err := run.components.Indexer.Restore(ctx); err != nil {
			fatalf("Failed to load corpus: %v", err)
		}
		var err error
		resp, err = run.components.Library.Search(ctx, q, *limit)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
	}
	if err := cli.Write(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runIndex adds a file or directory to the corpus database. A running server picks
// the change up through its watcher when the path is inside a corpus directory, or on
// its next start.
func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "index subdirectories")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 1 {
		fatalf("Usage: kanoon index [flags] <file-or-dir>")
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to read %s: %v", path, err)
	}

	run := openLocal(*configPath)
	defer run.close()
	ctx := context.Background()
	if err := run.components.loadBackends(ctx, false, run.logger); err != nil {
		fatalf("Failed to load backends: %v", err)
	}

	if info.IsDir() {
		indexed, failed, err := run.components.Indexer.IndexDirectory(ctx, path, *recursive)
		if err != nil {
			fatalf("Indexing failed: %v", err)
		}
		fmt.Printf("Indexed %d files (%d failed) from %s\n", indexed, failed, path)
		return
	}
	indexed, err := run.components.Indexer.IndexFile(ctx, path)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	if !indexed {
		fmt.Printf("Unchanged since last index: %s\n", path)
		return
	}
	fmt.Printf("Document indexed: %s\n", fileid.ForPath(path))
}

// runDelete removes a document by id, or by file path when the argument names an
// existing file.
func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 1 {
		fatalf("Usage: kanoon delete [flags] <document-id-or-file>")
	}
	docID := fs.Arg(0)
	if info, err := os.Stat(docID); err == nil && !info.IsDir() {
		docID = fileid.ForPath(docID)
	}
	ctx := context.Background()

	var err error
	if flags.remote() {
		err = flags.client().Delete(ctx, "/api/v1/documents/"+url.PathEscape(docID))
	} else {
		run := openLocal(*flags.configPath)
		defer run.close()
		err = run.components.Indexer.DeleteDocument(ctx, docID)
	}
	var se *cli.StatusError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.As(err, &se) && se.Code == 404:
		fatalf("Document not found: %s", docID)
	case err != nil:
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(args)
	format := flags.format()
	ctx := context.Background()

	status := map[string]any{}
	if flags.remote() {
		if err := flags.client().Get(ctx, "/api/v1/status", nil, &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		run := openLocal(*flags.configPath)
		defer run.close()
		cfg := run.components.Config
		stats, err := run.components.Indexer.Stats(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		local := struct {
			Corpus         any            `json:"corpus"`
			DiskUsageBytes int64          `json:"disk_usage_bytes"`
			Config         map[string]any `json:"config"`
		}{
			Corpus: stats,
			Config: map[string]any{
				"cache_capacity":   cfg.Cache.Capacity,
				"top_k":            cfg.Retrieval.TopK,
				"chunk_size":       cfg.Corpus.ChunkSize,
				"chunk_overlap":    cfg.Corpus.ChunkOverlap,
				"directories":      cfg.Corpus.Directories,
				"database_path":    cfg.Storage.DatabasePath,
				"bleve_index_path": cfg.Storage.BleveIndexPath,
			},
		}
		if n, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
			local.DiskUsageBytes = n
		}
		if status, err = toFields(local); err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.Write(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// toFields converts v to the generic form a decoded server response has.
func toFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	return out, json.Unmarshal(b, &out)
}
