package world

import "strings"

const (
	DefaultSeed            = 51
	DefaultWolfCount       = 4
	DefaultMailboxCapacity = 256
)

// DeathPolicy selects what happens when a wolf loses its last hit point.
type DeathPolicy string

const (
	// DeathReplicate removes the wolf and spawns two fresh ones.
	DeathReplicate DeathPolicy = "replicate"
	// DeathRemove removes the wolf permanently.
	DeathRemove DeathPolicy = "remove"
)

// MailboxOrder selects the drain order of inbound and outbound mailboxes.
type MailboxOrder string

const (
	MailboxLIFO MailboxOrder = "lifo"
	MailboxFIFO MailboxOrder = "fifo"
)

type Config struct {
	Seed            int          `json:"seed"`
	WolfCount       int          `json:"wolfCount"`
	DeathPolicy     DeathPolicy  `json:"deathPolicy"`
	MailboxOrder    MailboxOrder `json:"mailboxOrder"`
	MailboxCapacity int          `json:"mailboxCapacity"`
	AllowDevReset   bool         `json:"allowDevReset"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Seed < 0 {
		normalized.Seed = DefaultSeed
	}
	normalized.Seed &= 255
	if normalized.WolfCount < 0 {
		normalized.WolfCount = 0
	}
	switch DeathPolicy(strings.ToLower(strings.TrimSpace(string(normalized.DeathPolicy)))) {
	case DeathRemove:
		normalized.DeathPolicy = DeathRemove
	default:
		normalized.DeathPolicy = DeathReplicate
	}
	switch MailboxOrder(strings.ToLower(strings.TrimSpace(string(normalized.MailboxOrder)))) {
	case MailboxFIFO:
		normalized.MailboxOrder = MailboxFIFO
	default:
		normalized.MailboxOrder = MailboxLIFO
	}
	if normalized.MailboxCapacity <= 0 {
		normalized.MailboxCapacity = DefaultMailboxCapacity
	}
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func DefaultConfig() Config {
	return Config{
		Seed:            DefaultSeed,
		WolfCount:       DefaultWolfCount,
		DeathPolicy:     DeathReplicate,
		MailboxOrder:    MailboxLIFO,
		MailboxCapacity: DefaultMailboxCapacity,
	}
}
