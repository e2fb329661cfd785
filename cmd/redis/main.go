// Command redis runs the keyspace server on stdin and stdout: each input
// line is a command, tokenized like redis-cli does, and the RESP replies are
// written to stdout.
//
//	redis [/path/to/redis.conf] [--directive value ...]
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pengdafu/redis-dict/sds"
	"github.com/pengdafu/redis-dict/server"
)

func main() {
	if err := mainImpl(os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		var ce *server.ConfigError
		if errors.As(err, &ce) {
			fmt.Fprint(os.Stderr, ce.Fatal())
		} else {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		}
		os.Exit(1)
	}
}

func version() {
	fmt.Printf("Redis server v=%s go=%s %s/%s\n", server.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ./redis [/path/to/redis.conf] [options]
       ./redis - (read config from stdin)
       ./redis -v or --version
       ./redis -h or --help

Examples:
       ./redis (run the server with default conf)
       ./redis /etc/redis/6379.conf
       ./redis --hz 100
       ./redis /etc/myredis.conf --loglevel verbose
`)
}

// parseArgs splits the command line into the config file and the
// "--directive value" options, one directive per line.
func parseArgs(args []string) (configFile, options string) {
	j := 0
	if len(args) > 0 && !strings.HasPrefix(args[0], "--") {
		configFile = args[0]
		j = 1
	}
	var b strings.Builder
	for ; j < len(args); j++ {
		if strings.HasPrefix(args[j], "--") {
			if b.Len() != 0 {
				b.WriteString("\n")
			}
			b.WriteString(args[j][2:])
			b.WriteString(" ")
			continue
		}
		// 参数带引号，保留空格
		repr := sds.Empty()
		sds.CatRepr(repr, []byte(args[j]))
		b.WriteString(repr.String())
		b.WriteString(" ")
		sds.Free(repr)
	}
	return configFile, b.String()
}

func setupLogger(cfg *server.Config) (io.Closer, error) {
	ll := &slog.LevelVar{}
	ll.Set(cfg.LogLevel)
	var w io.Writer
	var closer io.Closer
	noColor := true
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("can't open the log file: %w", err)
		}
		w, closer = f, f
	} else {
		w = colorable.NewColorable(os.Stderr)
		noColor = !isatty.IsTerminal(os.Stderr.Fd())
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})))
	return closer, nil
}

func mainImpl(args []string) error {
	if len(args) == 1 {
		switch args[0] {
		case "-v", "--version":
			version()
			return nil
		case "-h", "--help":
			usage()
			return nil
		}
	}

	configFile, options := parseArgs(args)
	cfg, err := server.LoadConfig(configFile, options)
	if err != nil {
		return err
	}
	closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	if configFile == "" {
		slog.Warn("no config file specified, using the default config. In order to specify a config file use ./redis /path/to/redis.conf")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	srv := server.New(cfg)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			slog.Warn("Received shutdown signal, scheduling shutdown...")
			srv.Stop()
		case <-done:
		}
	}()
	go readCommands(srv, os.Stdin, os.Stdout)

	srv.Main()
	slog.Info("Redis is now ready to exit, bye bye...")
	return nil
}

// readCommands feeds every line of r to the event loop as a command and
// writes the replies to w. The server stops at the end of r.
func readCommands(srv *server.Server, r io.Reader, w io.Writer) {
	el := srv.EventLoop()
	c := srv.NewClient()
	out := bufio.NewWriter(w)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 512*1024*1024)
	for scanner.Scan() {
		argv, err := sds.SplitArgs(scanner.Text())
		if err != nil {
			el.Post(func() {
				_, _ = out.WriteString("-ERR Protocol error: unbalanced quotes in request\r\n")
				_ = out.Flush()
			})
			continue
		}
		if len(argv) == 0 {
			continue
		}
		el.Post(func() {
			srv.Call(c, argv)
			for _, a := range argv {
				sds.Free(a)
			}
			if _, err := c.WriteTo(out); err != nil {
				slog.Warn("Error writing to client", "err", err)
			}
			_ = out.Flush()
		})
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Error reading commands", "err", err)
	}
	el.Post(srv.Stop)
}
