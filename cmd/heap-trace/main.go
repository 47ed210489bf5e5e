// Command heap-trace replays an allocation trace against the allocator
// core and reports the resulting statistics, optionally re-running every
// time the trace file changes on disk.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/cli"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/heap"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/heapsim"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/replay"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/tracefmt"
)

const toolName = "heap-trace"

// config mirrors the shape of orizon-config's ProjectConfig: a flat,
// JSON-serializable struct, optionally loaded from -config to override
// the values defaultConfig supplies.
type config struct {
	HeapCapacity uint64 `json:"heap_capacity"`
	PageSize     uint64 `json:"page_size"`
	CheckEachOp  bool   `json:"check_each_op"`
}

func defaultConfig() config {
	return config{
		HeapCapacity: heapsim.DefaultCapacity,
		PageSize:     heapsim.DefaultPageSize,
		CheckEachOp:  false,
	}
}

var flagInfo = []cli.FlagInfo{
	{Name: "trace", Usage: "trace file to replay", Required: true},
	{Name: "config", Usage: "optional JSON file overriding heap sizing defaults"},
	{Name: "watch", Usage: "re-run the replay every time -trace changes on disk", Default: "false"},
	{Name: "json", Usage: "print the result as JSON instead of text", Default: "false"},
	{Name: "verbose", Usage: "log progress to stdout", Default: "false"},
}

func main() {
	var (
		tracePath  string
		configPath string
		watch      bool
		jsonOut    bool
		verbose    bool
		showHelp   bool
		showVer    bool
	)
	flag.StringVar(&tracePath, "trace", "", "trace file to replay (required)")
	flag.StringVar(&configPath, "config", "", "optional JSON file overriding heap sizing defaults")
	flag.BoolVar(&watch, "watch", false, "re-run the replay every time -trace changes on disk")
	flag.BoolVar(&jsonOut, "json", false, "print the result as JSON instead of text")
	flag.BoolVar(&verbose, "verbose", false, "log progress to stdout")
	flag.BoolVar(&showHelp, "help", false, "show usage and exit")
	flag.BoolVar(&showVer, "version", false, "show version information and exit")
	flag.Parse()

	if showHelp {
		cli.PrintUsage(toolName, "replay allocation traces against the boundary-tag allocator core", flagInfo)
		return
	}
	if showVer {
		cli.PrintVersion(toolName, jsonOut)
		return
	}

	log := cli.NewLogger(verbose, false)

	if tracePath == "" {
		cli.ExitWithError("-trace is required")
	}

	cfg := defaultConfig()
	if configPath != "" {
		if err := loadConfig(configPath, &cfg); err != nil {
			cli.ExitWithError("%v", err)
		}
		log.Info("loaded config from %s", configPath)
	}

	if err := runOnce(tracePath, cfg, jsonOut, log); err != nil {
		cli.ExitWithError("%v", err)
	}

	if watch {
		if err := watchAndRerun(tracePath, cfg, jsonOut, log); err != nil {
			cli.ExitWithError("%v", err)
		}
	}
}

func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func runOnce(tracePath string, cfg config, jsonOut bool, log *cli.Logger) error {
	f, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	sim := heapsim.NewSlice(uintptr(cfg.HeapCapacity), uintptr(cfg.PageSize))
	h, err := heap.New(sim)
	if err != nil {
		return fmt.Errorf("init heap: %w", err)
	}
	log.Debug("heap initialized: capacity=%d pageSize=%d", cfg.HeapCapacity, cfg.PageSize)

	var opts []replay.Option
	if cfg.CheckEachOp {
		opts = append(opts, replay.WithCheckAfterEachOp(true))
	}
	runner := replay.NewRunner(h, opts...)

	dec := tracefmt.NewDecoder(f)
	res, runErr := runner.Run(dec)
	log.Info("replayed %d lines from %s", res.LinesProcessed, tracePath)

	if err := printResult(res, runErr, jsonOut); err != nil {
		return err
	}
	return runErr
}

func printResult(res replay.Result, runErr error, jsonOut bool) error {
	if jsonOut {
		payload := struct {
			LinesProcessed int         `json:"lines_processed"`
			Stats          heap.Stats  `json:"stats"`
			Error          string      `json:"error,omitempty"`
			FailedAt       interface{} `json:"failed_at,omitempty"`
		}{
			LinesProcessed: res.LinesProcessed,
			Stats:          res.Stats,
		}
		if runErr != nil {
			payload.Error = runErr.Error()
			payload.FailedAt = res.FailedAt
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Printf("lines processed: %d\n", res.LinesProcessed)
	fmt.Printf("allocations: %d  frees: %d  grows: %d\n", res.Stats.Allocations, res.Stats.Frees, res.Stats.GrowCount)
	fmt.Printf("bytes in use: %d  peak: %d  free: %d  heap total: %d\n",
		res.Stats.BytesInUse, res.Stats.PeakBytesInUse, res.Stats.BytesFree, res.Stats.HeapBytesTotal)
	if runErr != nil {
		if res.FailedAt != nil {
			fmt.Fprintf(os.Stderr, "replay failed at line %d: %v\n", res.FailedAt.SourceNo, runErr)
		} else {
			fmt.Fprintf(os.Stderr, "replay failed: %v\n", runErr)
		}
	}
	return nil
}

func watchAndRerun(tracePath string, cfg config, jsonOut bool, log *cli.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(tracePath); err != nil {
		return fmt.Errorf("watch %s: %w", tracePath, err)
	}

	log.Info("watching %s for changes (ctrl-c to stop)", tracePath)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Info("%s changed, re-running", tracePath)
			if err := runOnce(tracePath, cfg, jsonOut, log); err != nil {
				log.Error("%v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error: %v", err)
		}
	}
}
