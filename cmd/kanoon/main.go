// Package main is the kanoon CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kanoon/internal/config"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kanoon/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and ./config.yaml exists,
// that file is used instead so "kanoon server" from a project directory picks up its
// config. Returns the config and the path that was actually loaded.
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
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, "", nil
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
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "chat":
		runChat(args)
	case "notice":
		runNotice(args)
	case "roadmap":
		runRoadmap(args)
	case "ask":
		runAsk(args)
	case "analyze":
		runAnalyze(args)
	case "search":
		runSearch(args)
	case "index":
		runIndex(args)
	case "delete":
		runDelete(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("kanoon version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves flags that follow positional words to the front, so
// "kanoon chat what is bail --output json" parses the flag.
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

// joinArgs joins positional words into one query string.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`kanoon - legal assistance inference service

Usage:
  kanoon server [flags]                 Start the HTTP server
  kanoon chat [flags] <question>        Ask a legal question
  kanoon notice [flags]                 Draft a legal notice
  kanoon roadmap [flags] <issue>        Show the steps for a legal issue
  kanoon ask [flags] <question>         Answer from the reference corpus
  kanoon analyze [flags] <file>         Summarize a document and answer a query about it
  kanoon search [flags] <query>         Search the reference corpus
  kanoon index [flags] <file-or-dir>    Add files to the reference corpus
  kanoon delete [flags] <id>            Remove a document from the corpus
  kanoon status [flags]                 Show backend, cache and corpus status
  kanoon version                        Show version
  kanoon help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kanoon/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run locally.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Notice Flags:
  --recipient, --address, --subject, --details, --name (required)
  --jurisdiction, --type

Roadmap Flags:
  --jurisdiction, --timeline

Ask Flags:
  --top-k int        Number of corpus passages to use (default from config)

Analyze Flags:
  --query string     Question to answer from the document

Search Flags:
  --limit int        Number of results (default: 10)

Examples:
  kanoon server
  kanoon chat "Can my landlord evict me without notice?"
  kanoon roadmap --jurisdiction Maharashtra "tenant eviction"
  kanoon notice --recipient "Vikram Shah" --address "12 MG Road" --subject "Deposit" \
      --details "Deposit not returned" --name "Asha Rao"
  kanoon analyze --query "What is the rent?" lease.pdf
  kanoon ask --output json "What is the limitation period for a cheque bounce complaint?"
  kanoon index ./acts
  kanoon status --output json`)
}
