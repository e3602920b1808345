// Package cmn provides common configuration types and read-mostly runtime
// tuning knobs shared by every core package.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spiderwiz/fabric/cmn/cos"
)

// ChannelSpec is one producer-<n>/consumer-<n> line: a named channel
// endpoint together with the object-codes it produces or consumes (each
// consumer code optionally flagged lossless with a trailing '+').
type ChannelSpec struct {
	Name    string
	Codes   []string
	Lossless map[string]bool
}

// Config mirrors the main config file described in the specification: a
// UTF-8, line-oriented, key=value format with semicolon-delimited
// sub-parameters. Mandatory keys fail startup (ConfigInvalid) when absent;
// everything else falls back to a documented default.
type Config struct {
	UUID string
	Name string

	Producers       []ChannelSpec
	Consumers       []ChannelSpec
	ProducerServers []string
	ConsumerServers []string
	Imports         []string

	Tunables struct {
		DisconnectionAlertMinutes int
		IdleAlertMinutes          int
		ReconnectSeconds          int
		ObsolescenceHours         int
		StartOfDay                string
		StreamRatePerSec          int
		MinDiskSpaceMB            int
		BackupFolder              string
		ArchiveFolder             string
		HubMode                   bool
		PassThrough               bool
		ResetRatePerMin           int
		ResetRequestWindowSeconds int
	}

	// ModifiedBy is the preserved "modified by" comment line, rewritten on
	// every Save with the current timestamp.
	ModifiedBy string

	raw map[string]string
}

const modifiedByPrefix = "; modified by "

func defaults() *Config {
	c := &Config{raw: map[string]string{}}
	c.Tunables.DisconnectionAlertMinutes = 5
	c.Tunables.IdleAlertMinutes = 10
	c.Tunables.ReconnectSeconds = 60
	c.Tunables.ObsolescenceHours = 24
	c.Tunables.StreamRatePerSec = 100
	c.Tunables.MinDiskSpaceMB = 1024
	c.Tunables.HubMode = true
	c.Tunables.ResetRatePerMin = 30000
	c.Tunables.ResetRequestWindowSeconds = 180
	return c
}

// Load parses the main config file. A missing mandatory key (application
// uuid, application name) is a ConfigInvalid error: the caller must fail
// startup without partial initialization.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := defaults()
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if strings.HasPrefix(line, ";") {
				cfg.ModifiedBy = line
				continue
			}
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cfg.raw[strings.TrimSpace(k)] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.apply(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply() error {
	c.UUID = c.raw["application uuid"]
	c.Name = c.raw["application name"]
	if c.UUID == "" {
		return fmt.Errorf("config: missing mandatory key %q", "application uuid")
	}
	if c.Name == "" {
		return fmt.Errorf("config: missing mandatory key %q", "application name")
	}

	c.Producers = rangedChannels(c.raw, "producer-")
	c.Consumers = rangedChannels(c.raw, "consumer-")
	c.ProducerServers = rangedValues(c.raw, "producer server-")
	c.ConsumerServers = rangedValues(c.raw, "consumer server-")
	c.Imports = rangedValues(c.raw, "import-")

	if v, ok := c.raw["disconnection alert minutes"]; ok {
		c.Tunables.DisconnectionAlertMinutes = atoiOr(v, c.Tunables.DisconnectionAlertMinutes)
	}
	if v, ok := c.raw["idle alert minutes"]; ok {
		c.Tunables.IdleAlertMinutes = atoiOr(v, c.Tunables.IdleAlertMinutes)
	}
	if v, ok := c.raw["reconnection seconds"]; ok {
		c.Tunables.ReconnectSeconds = atoiOr(v, c.Tunables.ReconnectSeconds)
	}
	if v, ok := c.raw["obsolescence hours"]; ok {
		c.Tunables.ObsolescenceHours = atoiOr(v, c.Tunables.ObsolescenceHours)
	}
	if v, ok := c.raw["start of day"]; ok {
		c.Tunables.StartOfDay = v
	}
	if v, ok := c.raw["stream rate"]; ok {
		c.Tunables.StreamRatePerSec = atoiOr(v, c.Tunables.StreamRatePerSec)
	}
	if v, ok := c.raw["minimum disk space"]; ok {
		c.Tunables.MinDiskSpaceMB = atoiOr(v, c.Tunables.MinDiskSpaceMB)
	}
	c.Tunables.BackupFolder = c.raw["backup folder"]
	c.Tunables.ArchiveFolder = c.raw["archive folder"]
	if v, ok := c.raw["hub mode"]; ok {
		c.Tunables.HubMode = v != "false"
	}
	if v, ok := c.raw["pass through"]; ok {
		c.Tunables.PassThrough = v == "true"
	}
	if v, ok := c.raw["reset rate per minute"]; ok {
		c.Tunables.ResetRatePerMin = atoiOr(v, c.Tunables.ResetRatePerMin)
	}
	if v, ok := c.raw["reset request window seconds"]; ok {
		c.Tunables.ResetRequestWindowSeconds = atoiOr(v, c.Tunables.ResetRequestWindowSeconds)
	}

	Rom.Set(c)
	return nil
}

// Save rewrites the config file, preserving the mandatory keys and ranged
// sections, and stamps a fresh "modified by" comment at the top.
func (c *Config) Save(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s at %s\n", modifiedByPrefix, os.Getenv("USER"), time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "application uuid=%s\n", c.UUID)
	fmt.Fprintf(&b, "application name=%s\n", c.Name)

	writeChannels(&b, "producer-", c.Producers)
	writeChannels(&b, "consumer-", c.Consumers)
	writeValues(&b, "producer server-", c.ProducerServers)
	writeValues(&b, "consumer server-", c.ConsumerServers)
	writeValues(&b, "import-", c.Imports)

	fmt.Fprintf(&b, "disconnection alert minutes=%d\n", c.Tunables.DisconnectionAlertMinutes)
	fmt.Fprintf(&b, "idle alert minutes=%d\n", c.Tunables.IdleAlertMinutes)
	fmt.Fprintf(&b, "reconnection seconds=%d\n", c.Tunables.ReconnectSeconds)
	fmt.Fprintf(&b, "obsolescence hours=%d\n", c.Tunables.ObsolescenceHours)
	fmt.Fprintf(&b, "stream rate=%d\n", c.Tunables.StreamRatePerSec)
	fmt.Fprintf(&b, "minimum disk space=%d\n", c.Tunables.MinDiskSpaceMB)
	fmt.Fprintf(&b, "hub mode=%t\n", c.Tunables.HubMode)
	fmt.Fprintf(&b, "pass through=%t\n", c.Tunables.PassThrough)
	fmt.Fprintf(&b, "reset rate per minute=%d\n", c.Tunables.ResetRatePerMin)
	fmt.Fprintf(&b, "reset request window seconds=%d\n", c.Tunables.ResetRequestWindowSeconds)

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// NewNode builds a fresh config for a node's first start, generating and
// persisting its immutable UUID.
func NewNode(name string) *Config {
	c := defaults()
	c.UUID = cos.GenNodeUUID()
	c.Name = name
	return c
}

func atoiOr(s string, d int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return d
}

func rangedChannels(raw map[string]string, prefix string) []ChannelSpec {
	idx := rangedIndexes(raw, prefix)
	out := make([]ChannelSpec, 0, len(idx))
	for _, i := range idx {
		val := raw[prefix+strconv.Itoa(i)]
		parts := strings.Split(val, ";")
		spec := ChannelSpec{Name: parts[0], Lossless: map[string]bool{}}
		for _, code := range parts[1:] {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			lossless := strings.HasSuffix(code, "+")
			code = strings.TrimSuffix(code, "+")
			spec.Codes = append(spec.Codes, code)
			if lossless {
				spec.Lossless[code] = true
			}
		}
		out = append(out, spec)
	}
	return out
}

func rangedValues(raw map[string]string, prefix string) []string {
	idx := rangedIndexes(raw, prefix)
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, raw[prefix+strconv.Itoa(i)])
	}
	return out
}

func rangedIndexes(raw map[string]string, prefix string) []int {
	var idx []int
	for k := range raw {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(k, prefix)); err == nil {
			idx = append(idx, n)
		}
	}
	sort.Ints(idx)
	return idx
}

func writeChannels(b *strings.Builder, prefix string, specs []ChannelSpec) {
	for i, spec := range specs {
		parts := []string{spec.Name}
		for _, code := range spec.Codes {
			if spec.Lossless[code] {
				parts = append(parts, code+"+")
			} else {
				parts = append(parts, code)
			}
		}
		fmt.Fprintf(b, "%s%d=%s\n", prefix, i, strings.Join(parts, ";"))
	}
}

func writeValues(b *strings.Builder, prefix string, vals []string) {
	for i, v := range vals {
		fmt.Fprintf(b, "%s%d=%s\n", prefix, i, v)
	}
}
