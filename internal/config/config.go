package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAddr       = "127.0.0.1"
	DefaultPort       = 3000
	DefaultSendBuffer = 64
	DefaultTicketTTL  = time.Minute
	DefaultMongoDB    = "ownpad"
)

type Config struct {
	Addr string
	Port int

	// signs join tickets
	Secret []byte

	// room state goes to Mongo when set, memory otherwise
	MongoURI string
	MongoDB  string

	// check edits against the sender's own change and reject those that
	// delete text the sender may not delete; off, edits are taken as sent
	EnforceDeletes bool
	// let ordinary participants delete text with no recorded owner
	AllowUnowned bool

	SendBuffer int
	TicketTTL  time.Duration
}

// Load reads envFile (when it exists) into the environment and builds a
// Config from OWNPAD_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	c := &Config{
		Addr:       DefaultAddr,
		Port:       DefaultPort,
		MongoDB:    DefaultMongoDB,
		SendBuffer: DefaultSendBuffer,
		TicketTTL:  DefaultTicketTTL,
	}

	if v := os.Getenv("OWNPAD_ADDR"); v != "" {
		c.Addr = v
	}
	c.MongoURI = os.Getenv("OWNPAD_MONGO_URI")
	if v := os.Getenv("OWNPAD_MONGO_DB"); v != "" {
		c.MongoDB = v
	}

	var err error
	if c.Port, err = intVar("OWNPAD_PORT", c.Port); err != nil {
		return nil, err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("OWNPAD_PORT: %d out of range", c.Port)
	}
	if c.SendBuffer, err = intVar("OWNPAD_SEND_BUFFER", c.SendBuffer); err != nil {
		return nil, err
	}
	if c.SendBuffer <= 0 {
		return nil, fmt.Errorf("OWNPAD_SEND_BUFFER: must be positive")
	}
	if c.EnforceDeletes, err = boolVar("OWNPAD_ENFORCE_DELETES", c.EnforceDeletes); err != nil {
		return nil, err
	}
	if c.AllowUnowned, err = boolVar("OWNPAD_ALLOW_UNOWNED", c.AllowUnowned); err != nil {
		return nil, err
	}
	if v := os.Getenv("OWNPAD_TICKET_TTL"); v != "" {
		if c.TicketTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("OWNPAD_TICKET_TTL: %w", err)
		}
		if c.TicketTTL <= 0 {
			return nil, fmt.Errorf("OWNPAD_TICKET_TTL: must be positive")
		}
	}

	if v := os.Getenv("OWNPAD_SECRET"); v != "" {
		c.Secret = []byte(v)
	} else {
		// tickets do not need to survive a restart
		c.Secret = make([]byte, 32)
		if _, err := rand.Read(c.Secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
	}

	return c, nil
}

func (c *Config) Listen() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

func intVar(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func boolVar(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
