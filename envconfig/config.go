package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var ErrInvalidHostPort = errors.New("invalid port specified in AICI_HOST")

const defaultPort = "8090"

// Host returns the scheme and host the server listens on and clients
// connect to. Configured via AICI_HOST; defaults to http://127.0.0.1:8090.
func Host() *url.URL {
	u, err := parseHost(Var("AICI_HOST"))
	if err != nil {
		slog.Warn("invalid host, using default", "AICI_HOST", Var("AICI_HOST"), "error", err)
		u, _ = parseHost("")
	}
	return u
}

func parseHost(s string) (*url.URL, error) {
	port := defaultPort
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		port = "80"
	case scheme == "https":
		port = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host = "127.0.0.1"
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	} else {
		port = p
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n < 0 || n > math.MaxUint16 {
		return nil, ErrInvalidHostPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}, nil
}

// Origins returns the CORS origins the server accepts. Configured via
// AICI_ORIGINS as a comma separated list; local origins are always
// allowed.
func Origins() (origins []string) {
	if s := Var("AICI_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// LogLevel maps AICI_DEBUG onto a log level: unset or false is info,
// true or 1 is debug, 2 is trace.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("AICI_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				level = slog.LevelDebug
			}
		} else if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			level = slog.Level(i * -4)
		}
	}

	return level
}

func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

var (
	// Vocab is the tokenizer.json file the engine loads.
	Vocab = String("AICI_VOCAB")
	// Library is the YAML file of named constraints.
	Library = String("AICI_LIBRARY")
	// EOSToken names the added token used as end of sequence.
	EOSToken = String("AICI_EOS_TOKEN")
)

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else if n > 0 {
				return uint(n)
			}
		}

		return defaultValue
	}
}

var (
	// MaxItems bounds the parser items a grammar constraint may create for
	// a single byte of input.
	MaxItems = Uint("AICI_MAX_ITEMS", 200_000)
	// MaxDFAStates bounds the size of a compiled regular expression.
	MaxDFAStates = Uint("AICI_MAX_DFA_STATES", 10_000)
	// MaskCache is the number of per-state token sets a regex constraint keeps.
	MaskCache = Uint("AICI_MASK_CACHE", 1024)
	// NumParallel bounds concurrent sequence evaluation.
	NumParallel = Uint("AICI_NUM_PARALLEL", uint(runtime.NumCPU()))
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"AICI_DEBUG":          {"AICI_DEBUG", LogLevel(), "Show additional debug information (e.g. AICI_DEBUG=1)"},
		"AICI_HOST":           {"AICI_HOST", Host(), "IP Address for the aici server (default 127.0.0.1:8090)"},
		"AICI_ORIGINS":        {"AICI_ORIGINS", Origins(), "A comma separated list of allowed origins"},
		"AICI_VOCAB":          {"AICI_VOCAB", Vocab(), "Path to the tokenizer.json vocabulary"},
		"AICI_LIBRARY":        {"AICI_LIBRARY", Library(), "Path to a YAML library of named constraints"},
		"AICI_EOS_TOKEN":      {"AICI_EOS_TOKEN", EOSToken(), "Added token used as end of sequence"},
		"AICI_MAX_ITEMS":      {"AICI_MAX_ITEMS", MaxItems(), "Maximum grammar parser items per input byte (default 200000)"},
		"AICI_MAX_DFA_STATES": {"AICI_MAX_DFA_STATES", MaxDFAStates(), "Maximum states in a compiled regex (default 10000)"},
		"AICI_MASK_CACHE":     {"AICI_MASK_CACHE", MaskCache(), "Token sets cached per regex constraint (default 1024)"},
		"AICI_NUM_PARALLEL":   {"AICI_NUM_PARALLEL", NumParallel(), "Maximum sequences evaluated in parallel (default number of CPUs)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of leading and trailing
// quotes or spaces, falling back to the config file.
func Var(key string) string {
	if s := strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'"); s != "" {
		return s
	}
	return GetConfigValue(key)
}
