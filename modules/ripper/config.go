package ripper

import (
	"flag"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/zachfi/zkit/pkg/util"
)

// Buffer sizing guidance (chunk-size, num-chunks):
// - The pipeline holds chunk-size*num-chunks bytes between the network
//   reader and the file writer; at 128kbps a 10x32KiB buffer is about
//   20 seconds of audio.
// - Larger buffers ride out slow disks and NFS stalls at the cost of
//   memory and shutdown latency.
const (
	defaultChunkSize = 32 * 1024
	defaultNumChunks = 10

	defaultConnectTimeout = 15 * time.Second
	defaultReadTimeout    = 20 * time.Second

	defaultReconnectMin = 5 * time.Second
	defaultReconnectMax = 60 * time.Second

	defaultUserAgent = "icyrip/1.0"
)

type Config struct {
	URL       string `yaml:"url,omitempty"`
	Dir       string `yaml:"dir,omitempty"`
	RulesFile string `yaml:"rules-file,omitempty"` // parse rules; empty uses the built-in defaults
	Overwrite string `yaml:"overwrite,omitempty"`  // always, never, larger, version
	UserAgent string `yaml:"user-agent,omitempty"`

	ChunkSize int `yaml:"chunk-size,omitempty"`
	NumChunks int `yaml:"num-chunks,omitempty"`

	ConnectTimeout time.Duration `yaml:"connect-timeout,omitempty"`
	ReadTimeout    time.Duration `yaml:"read-timeout,omitempty"`

	ReconnectBackoff    time.Duration `yaml:"reconnect-backoff,omitempty"`     // initial delay before reconnecting after disconnect
	ReconnectBackoffMax time.Duration `yaml:"reconnect-backoff-max,omitempty"` // cap on reconnect delay (exponential backoff)
	ReconnectRetries    int           `yaml:"reconnect-retries,omitempty"`     // 0 retries forever
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "The URL from which to stream. Playlist URLs (.pls, .m3u) are resolved first.")
	f.StringVar(&cfg.Dir, util.PrefixConfig(prefix, "dir"), "", "The directory to save the tracks under")
	f.StringVar(&cfg.RulesFile, util.PrefixConfig(prefix, "rules-file"), "", "Metadata parse rules file. Empty uses the built-in rules.")
	f.StringVar(&cfg.Overwrite, util.PrefixConfig(prefix, "overwrite"), "larger",
		"What to do when a track file already exists: always, never, larger, version.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User-Agent header sent to the server")
	f.IntVar(&cfg.ChunkSize, util.PrefixConfig(prefix, "chunk-size"), defaultChunkSize,
		"Pipeline chunk size in bytes. Also the unit of consumer reads and file writes.")
	f.IntVar(&cfg.NumChunks, util.PrefixConfig(prefix, "num-chunks"), defaultNumChunks,
		"Number of chunks the pipeline buffers between network and disk.")
	f.DurationVar(&cfg.ConnectTimeout, util.PrefixConfig(prefix, "connect-timeout"), defaultConnectTimeout,
		"Timeout for establishing the stream connection, including the TLS handshake.")
	f.DurationVar(&cfg.ReadTimeout, util.PrefixConfig(prefix, "read-timeout"), defaultReadTimeout,
		"Rolling timeout for stream reads. A server silent for this long counts as disconnected.")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectMin,
		"Initial delay before reconnecting after stream disconnect. Exponential backoff is used up to reconnect-backoff-max.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax,
		"Maximum delay between reconnection attempts.")
	f.IntVar(&cfg.ReconnectRetries, util.PrefixConfig(prefix, "reconnect-retries"), 0,
		"Give up after this many consecutive failed reconnects. 0 retries forever.")
}

func (cfg *Config) backoffConfig() backoff.Config {
	return backoff.Config{
		MinBackoff: cfg.ReconnectBackoff,
		MaxBackoff: cfg.ReconnectBackoffMax,
		MaxRetries: cfg.ReconnectRetries,
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.NumChunks <= 0 {
		cfg.NumChunks = defaultNumChunks
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectMin
	}
	if cfg.ReconnectBackoffMax <= 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Overwrite == "" {
		cfg.Overwrite = "larger"
	}
}
