/*
File Name:  Config.go
Author:     Peter Kleissner

Core configuration, loaded from YAML the way the teacher's Settings.go/Config.go load the Peernet
config: a default is embedded in the binary so a fresh node starts with sane settings even with no
external file, and an on-disk file overrides it when present.
*/
package core

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed ConfigDefault.yaml
var defaultConfigYAML []byte

// Config bundles every tunable named in the specification's configuration knobs table.
type Config struct {
	MessageTTL   uint8 `yaml:"message_ttl"`
	SyncTTL      uint8 `yaml:"sync_ttl"`

	SeenMaxEntries int   `yaml:"seen_max_entries"`
	SeenTTLMs      int64 `yaml:"seen_ttl_ms"`

	FragmentTimeoutMs        int64 `yaml:"fragment_timeout_ms"`
	FragmentCleanupIntervalMs int64 `yaml:"fragment_cleanup_interval_ms"`
	FragmentSizeThreshold    int   `yaml:"fragment_size_threshold"`

	RekeyTimeLimitMs       int64 `yaml:"rekey_time_limit_ms"`
	RekeyMessagesSession   int   `yaml:"rekey_messages_session"`
	RekeyMessagesService   int   `yaml:"rekey_messages_service"`
	NoiseNonceWarnThreshold int64 `yaml:"noise_nonce_warn_threshold"`

	GCSDefaultBytes   int     `yaml:"gcs_default_bytes"`
	GCSDefaultFPR     float64 `yaml:"gcs_default_fpr"`
	GCSAcceptMaxBytes int     `yaml:"gcs_accept_max_bytes"`

	StalePeerTimeoutMs int64 `yaml:"stale_peer_timeout_ms"`

	// IdentityStorePath is where the reference identitystore.Store persists its pogreb database.
	IdentityStorePath string `yaml:"identity_store_path"`

	// BlacklistStorePath is where the blacklist's pogreb database is persisted.
	BlacklistStorePath string `yaml:"blacklist_store_path"`

	// SeedList is a fixed list of bootstrap neighbors, reachable over the diagnostic bridge, used to
	// wire a deterministic mesh in tests and for desktop bridge nodes without real BLE hardware.
	SeedList []SeedPeer `yaml:"seed_list"`

	// BridgeListenAddress is the loopback WebSocket + HTTP bridge's listen address.
	BridgeListenAddress string `yaml:"bridge_listen_address"`
}

// SeedPeer is one statically configured bootstrap neighbor.
type SeedPeer struct {
	Address  string `yaml:"address"`
	Nickname string `yaml:"nickname"`
}

// LoadConfig reads filename into out. If filename does not exist, the embedded default is parsed
// instead and written out to filename so the node has a concrete config file on disk from then on.
// Returns an ExitX status: anything other than ExitSuccess indicates a fatal failure the caller must
// not proceed past.
func LoadConfig(filename string, out *Config) (status int, err error) {
	data, readErr := os.ReadFile(filename)
	if readErr != nil {
		if !os.IsNotExist(readErr) {
			return ExitErrorConfigAccess, readErr
		}
		data = defaultConfigYAML
		if err := yaml.Unmarshal(data, out); err != nil {
			return ExitErrorConfigParse, err
		}
		if filename != "" {
			if err := os.WriteFile(filename, defaultConfigYAML, 0o600); err != nil {
				return ExitErrorConfigAccess, err
			}
		}
		return ExitSuccess, nil
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return ExitErrorConfigParse, err
	}
	return ExitSuccess, nil
}
