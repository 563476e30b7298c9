package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/broadcastkit/tsreplay"
)

// Log file rotation limits, matched to a single long-running replay process.
const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 28
)

var (
	ctx, cancel     = context.WithCancel(context.Background())
	bufferSizeMB    = flag.Int("b", 2, "input buffer size, in MiB")
	cpuProfiling    = flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	inputPath       = flag.String("i", "", "the TS or M2TS file to replay")
	lockPath        = flag.String("lock", "", "path to a resume-offset lock file")
	logPath         = flag.String("log", "", "if set, mirror logs to this file with rotation")
	loop            = flag.Bool("loop", false, "if yes, rewind to the start on EOF instead of exiting")
	memoryProfiling = flag.Bool("mp", false, "if yes, memory profiling is enabled")
	quiet           = flag.Bool("q", false, "if yes, suppress per-packet logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *logPath != "" {
		fileLog := &lumberjack.Logger{
			Filename:   *logPath,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, fileLog))
	}
	tsreplay.SetLogger(log.Default())

	handleSignals()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	if *inputPath == "" {
		log.Fatal("tsreplay: use -i to indicate an input file")
	}

	opts := []tsreplay.Option{
		tsreplay.WithFilename(*inputPath),
		tsreplay.WithLoop(*loop),
		tsreplay.WithBufferSize(*bufferSizeMB * 1024 * 1024),
		tsreplay.WithCallback(func() {
			log.Println("tsreplay: end of stream")
			cancel()
		}),
	}
	if *lockPath != "" {
		opts = append(opts, tsreplay.WithLock(*lockPath))
	}
	if !*quiet {
		opts = append(opts, tsreplay.WithSink(tsreplay.PacketSinkFunc(func(packet []byte) {
			log.Printf("tsreplay: packet, pid=%d\n", (uint16(packet[1]&0x1f)<<8)|uint16(packet[2]))
		})))
	}

	r, err := tsreplay.NewReplay(ctx, opts...)
	if err != nil {
		log.Fatal(fmt.Errorf("tsreplay: starting replay failed: %w", err))
	}
	defer r.Close()

	log.Printf("tsreplay: length=%dms", r.Length())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !r.Next() {
			return
		}
	}
}

func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch)
	go func() {
		for s := range ch {
			if s != syscall.SIGURG {
				log.Printf("tsreplay: received signal %s\n", s)
			}
			switch s {
			case syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
				cancel()
				return
			}
		}
	}()
}
