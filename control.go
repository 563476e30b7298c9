package tsreplay

import "github.com/prometheus/client_golang/prometheus"

// Options configures a Replay instance. Build one with the With* functional
// options below rather than populating it directly.
type Options struct {
	filename    string
	lock        string
	offsetStore OffsetStore
	loop        bool
	pause       int32
	bufferSize  int
	callback    func()
	checkLength bool
	sink        PacketSink
	registry    *prometheus.Registry
}

// PacketSink is the downstream collaborator a Replay forwards packets to.
// It lives outside this package's scope (it's the host process's event
// framework); Replay only needs the interface to call into it.
type PacketSink interface {
	HandlePacket(packet []byte)
}

// PacketSinkFunc adapts a plain function to a PacketSink.
type PacketSinkFunc func(packet []byte)

// HandlePacket implements PacketSink.
func (f PacketSinkFunc) HandlePacket(packet []byte) { f(packet) }

// Option mutates an Options during NewReplay construction.
type Option func(*Options)

// WithFilename sets the path to the TS or M2TS file to replay. Required.
func WithFilename(filename string) Option {
	return func(o *Options) { o.filename = filename }
}

// WithLock sets the path of a flat lock file used to persist the current
// read offset across restarts. Ignored if WithOffsetStore is also given.
func WithLock(path string) Option {
	return func(o *Options) { o.lock = path }
}

// WithOffsetStore overrides the resume-offset persistence backend, e.g. a
// Redis- or SQLite-backed store instead of the flat-file default.
func WithOffsetStore(store OffsetStore) Option {
	return func(o *Options) { o.offsetStore = store }
}

// WithLoop makes the replay rewind to the start of the file on EOF instead
// of terminating.
func WithLoop(loop bool) Option {
	return func(o *Options) { o.loop = loop }
}

// WithPause sets the initial pause state; nonzero starts paused.
func WithPause(pause int32) Option {
	return func(o *Options) { o.pause = pause }
}

// WithBufferSize overrides the input window size, in bytes. Defaults to
// defaultBufferSize (2 MiB).
func WithBufferSize(size int) Option {
	return func(o *Options) { o.bufferSize = size }
}

// WithCallback registers a function invoked exactly once, from the consumer
// goroutine, when a non-looping replay reaches EOF.
func WithCallback(cb func()) Option {
	return func(o *Options) { o.callback = cb }
}

// WithCheckLength makes NewReplay probe the file to populate Length() and
// return without starting the pacing loop, for callers that only want
// metadata.
func WithCheckLength(check bool) Option {
	return func(o *Options) { o.checkLength = check }
}

// WithSink sets the downstream collaborator every emitted packet is
// forwarded to by the Consumer Bridge.
func WithSink(sink PacketSink) Option {
	return func(o *Options) { o.sink = sink }
}

// WithMetricsRegistry registers this replay's Prometheus collectors
// against registry instead of leaving metrics uncollected.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(o *Options) { o.registry = registry }
}
