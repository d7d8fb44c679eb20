/*
File Name:  Exit.go
Author:     Peter Kleissner
*/

package core

// Exit codes signal why Init failed to bring the core up. Clients are encouraged to log additional
// details in a log file. 3rd party embedders may define additional exit codes above this range.
const (
	ExitSuccess             = 0          // This is actually never used.
	ExitErrorConfigAccess   = 1          // Error accessing the config file.
	ExitErrorConfigParse    = 2          // Error parsing the config file.
	ExitErrorLogInit        = 3          // Error initializing the log writer.
	ExitIdentityStoreAccess = 4          // Error opening the identity key store.
	ExitIdentityKeyCorrupt  = 5          // Persisted identity keys are corrupt or incomplete.
	ExitNoiseInitFailed     = 6          // Noise cipher suite/handshake state failed to initialize.
	ExitGraceful            = 7          // Graceful shutdown.
	STATUS_CONTROL_C_EXIT   = 0xC000013A // The application terminated as a result of a CTRL+C. This is a Windows NTSTATUS value.
)
