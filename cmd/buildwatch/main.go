package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	watcher "github.com/shuakami/buildwatcher"
)

// defaultEditor 未指定 -editor 且没有 UNITY_BIN 环境变量时使用的编辑器路径
const defaultEditor = "/Applications/Unity/Hub/Editor/2022.3.62f3/Unity.app/Contents/MacOS/Unity"

// stringList 是可重复出现的字符串flag，也接受逗号分隔的多个值
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*s = append(*s, p)
		}
	}
	return nil
}

type options struct {
	watch   watcher.ConfigWatcher
	build   watcher.BuildConfig
	version bool
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("buildwatch", flag.ContinueOnError)
	fs.SetOutput(output)
	project := fs.String("project", ".", "project path passed to the build as -projectPath")
	editor := fs.String("editor", defaultStr(os.Getenv("UNITY_BIN"), defaultEditor), "build executable")
	method := fs.String("method", watcher.DefaultBuildMethod, "fully-qualified build entry point (-executeMethod)")
	outDir := fs.String("output", "", "build output dir (default <project>/Builds/WebGL_dev)")
	logFile := fs.String("log", "", "build log file (default <output>/"+watcher.DefaultLogName+")")
	outEnv := fs.String("env", watcher.DefaultOutputEnv, "environment variable carrying the output dir")
	poll := fs.Duration("poll", watcher.DefaultPollInterval, "poll interval, e.g. 500ms, 2s")
	debounce := fs.Duration("debounce", watcher.DefaultDebounce, "minimum time between builds")
	notify := fs.Bool("notify", false, "wake up early on filesystem events (fsnotify)")
	verbose := fs.Bool("v", false, "print change summaries and build errors")
	version := fs.Bool("version", false, "print version and exit")
	var watchDirs, excludeDirs stringList
	fs.Var(&watchDirs, "watch", "directory to watch, repeatable (default <project>/{Assets,Packages,ProjectSettings})")
	fs.Var(&excludeDirs, "exclude", "directory name to prune, repeatable (default "+strings.Join(watcher.DefaultExcludeDirs, ",")+")")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if *version {
		opts.version = true
		return opts, nil
	}
	if *poll <= 0 {
		return opts, fmt.Errorf("invalid poll interval: %s", *poll)
	}
	if *debounce <= 0 {
		return opts, fmt.Errorf("invalid debounce: %s", *debounce)
	}

	projectPath, err := filepath.Abs(*project)
	if err != nil {
		return opts, fmt.Errorf("invalid project path: %w", err)
	}
	if len(watchDirs) == 0 {
		watchDirs = watcher.DefaultWatchPaths(projectPath)
	}
	if len(excludeDirs) == 0 {
		excludeDirs = watcher.DefaultExcludeDirs
	}

	opts.build = watcher.BuildConfig{
		Executable:  *editor,
		ProjectPath: projectPath,
		Method:      *method,
		OutputDir:   *outDir,
		LogFile:     *logFile,
		OutputEnv:   *outEnv,
	}
	opts.watch = watcher.ConfigWatcher{
		WatchPaths:   watchDirs,
		ExcludeDirs:  excludeDirs,
		PollInterval: *poll,
		Debounce:     *debounce,
		UseNotify:    *notify,
		Verbose:      *verbose,
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		fatal(err)
	}
	if opts.version {
		fmt.Printf("buildwatch %s\n", version())
		return
	}

	builder, err := watcher.NewCommandBuilder(opts.build)
	if err != nil {
		fatal(err)
	}
	w, err := watcher.NewWatcher(opts.watch, builder)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "buildwatch: %v\n", err)
	os.Exit(1)
}

func defaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
